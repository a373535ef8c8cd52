package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/dispatch"
)

type DispatchService interface {
	Process(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

type BroadcastScheduler interface {
	Schedule(task core.BroadcastTask)
}

type ProxyWriter interface {
	Create(ctx context.Context, proxy core.Proxy) (core.Proxy, error)
	Save(ctx context.Context, proxy core.Proxy) (core.Proxy, error)
}

type DispatchEventCommand struct {
	service   DispatchService
	scheduler BroadcastScheduler
}

func NewDispatchEventCommand(service DispatchService, scheduler BroadcastScheduler) *DispatchEventCommand {
	return &DispatchEventCommand{service: service, scheduler: scheduler}
}

func (c *DispatchEventCommand) Execute(ctx context.Context, msg DispatchEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.Process(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	// The result is collected before the task is handed off, mirroring the
	// ack-first ordering of the HTTP path.
	if out.Task != nil && c.scheduler != nil {
		c.scheduler.Schedule(*out.Task)
	}
	return nil
}

type ScheduleBroadcastCommand struct {
	scheduler BroadcastScheduler
}

func NewScheduleBroadcastCommand(scheduler BroadcastScheduler) *ScheduleBroadcastCommand {
	return &ScheduleBroadcastCommand{scheduler: scheduler}
}

func (c *ScheduleBroadcastCommand) Execute(ctx context.Context, msg ScheduleBroadcastMessage) error {
	if c == nil || c.scheduler == nil {
		return commandDependencyError("command: broadcast scheduler is required")
	}
	c.scheduler.Schedule(msg.Task)
	return nil
}

type CreateProxyCommand struct {
	writer ProxyWriter
}

func NewCreateProxyCommand(writer ProxyWriter) *CreateProxyCommand {
	return &CreateProxyCommand{writer: writer}
}

func (c *CreateProxyCommand) Execute(ctx context.Context, msg CreateProxyMessage) error {
	if c == nil || c.writer == nil {
		return commandDependencyError("command: proxy writer is required")
	}
	out, err := c.writer.Create(ctx, msg.Proxy)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SaveProxyCommand struct {
	writer ProxyWriter
}

func NewSaveProxyCommand(writer ProxyWriter) *SaveProxyCommand {
	return &SaveProxyCommand{writer: writer}
}

func (c *SaveProxyCommand) Execute(ctx context.Context, msg SaveProxyMessage) error {
	if c == nil || c.writer == nil {
		return commandDependencyError("command: proxy writer is required")
	}
	out, err := c.writer.Save(ctx, msg.Proxy)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
