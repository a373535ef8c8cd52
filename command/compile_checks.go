package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[DispatchEventMessage]     = (*DispatchEventCommand)(nil)
	_ gocmd.Commander[ScheduleBroadcastMessage] = (*ScheduleBroadcastCommand)(nil)
	_ gocmd.Commander[CreateProxyMessage]       = (*CreateProxyCommand)(nil)
	_ gocmd.Commander[SaveProxyMessage]         = (*SaveProxyCommand)(nil)
)
