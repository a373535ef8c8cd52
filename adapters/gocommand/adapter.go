package gocommand

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	hookcommand "github.com/goliatone/go-hookrelay/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd gocmd.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler gocmd.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd gocmd.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// GatewayDeps names the collaborators the gateway command set closes over.
// Writer may be nil when the deployment exposes no management surface.
type GatewayDeps struct {
	Dispatch  hookcommand.DispatchService
	Scheduler hookcommand.BroadcastScheduler
	Writer    hookcommand.ProxyWriter
}

// WireGateway registers and subscribes every gateway command on the adapter's
// registry. The returned subscriptions stay live until unsubscribed.
func WireGateway(adapter *RegistryAdapter, deps GatewayDeps) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if deps.Dispatch == nil {
		return nil, fmt.Errorf("gocommand: dispatch service is required")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("gocommand: broadcast scheduler is required")
	}

	var subscriptions []commanddispatcher.Subscription
	cleanup := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}

	sub, err := RegisterAndSubscribe(adapter, gocmd.Commander[hookcommand.DispatchEventMessage](
		hookcommand.NewDispatchEventCommand(deps.Dispatch, deps.Scheduler),
	))
	if err != nil {
		cleanup()
		return nil, err
	}
	subscriptions = append(subscriptions, sub)

	sub, err = RegisterAndSubscribe(adapter, gocmd.Commander[hookcommand.ScheduleBroadcastMessage](
		hookcommand.NewScheduleBroadcastCommand(deps.Scheduler),
	))
	if err != nil {
		cleanup()
		return nil, err
	}
	subscriptions = append(subscriptions, sub)

	if deps.Writer != nil {
		sub, err = RegisterAndSubscribe(adapter, gocmd.Commander[hookcommand.CreateProxyMessage](
			hookcommand.NewCreateProxyCommand(deps.Writer),
		))
		if err != nil {
			cleanup()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)

		sub, err = RegisterAndSubscribe(adapter, gocmd.Commander[hookcommand.SaveProxyMessage](
			hookcommand.NewSaveProxyCommand(deps.Writer),
		))
		if err != nil {
			cleanup()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}
