package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/dispatch"
)

const (
	TypeDispatchEvent     = "hookrelay.command.dispatch"
	TypeScheduleBroadcast = "hookrelay.command.broadcast.schedule"
	TypeCreateProxy       = "hookrelay.command.proxy.create"
	TypeSaveProxy         = "hookrelay.command.proxy.save"
)

type DispatchEventMessage struct {
	Request dispatch.Request
}

func (DispatchEventMessage) Type() string { return TypeDispatchEvent }

func (m DispatchEventMessage) Validate() error {
	if strings.TrimSpace(m.Request.Platform) == "" {
		return fmt.Errorf("command: platform is required")
	}
	if strings.TrimSpace(m.Request.RoutingKey) == "" {
		return fmt.Errorf("command: routing key is required")
	}
	if len(m.Request.Body) == 0 {
		return fmt.Errorf("command: request body is required")
	}
	return nil
}

type ScheduleBroadcastMessage struct {
	Task core.BroadcastTask
}

func (ScheduleBroadcastMessage) Type() string { return TypeScheduleBroadcast }

func (m ScheduleBroadcastMessage) Validate() error {
	if strings.TrimSpace(m.Task.Proxy.RoutingKey) == "" {
		return fmt.Errorf("command: task routing key is required")
	}
	if len(m.Task.Body) == 0 {
		return fmt.Errorf("command: task body is required")
	}
	return nil
}

type CreateProxyMessage struct {
	Proxy core.Proxy
}

func (CreateProxyMessage) Type() string { return TypeCreateProxy }

func (m CreateProxyMessage) Validate() error {
	if strings.TrimSpace(m.Proxy.RoutingKey) == "" {
		return fmt.Errorf("command: routing key is required")
	}
	if strings.TrimSpace(m.Proxy.Platform) == "" {
		return fmt.Errorf("command: platform is required")
	}
	return nil
}

type SaveProxyMessage struct {
	Proxy core.Proxy
}

func (SaveProxyMessage) Type() string { return TypeSaveProxy }

func (m SaveProxyMessage) Validate() error {
	if strings.TrimSpace(m.Proxy.ID) == "" {
		return fmt.Errorf("command: proxy id is required")
	}
	return nil
}
