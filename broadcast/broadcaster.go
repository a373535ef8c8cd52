package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-hookrelay/core"
)

// Broadcaster owns the per-event background task. Each scheduled task runs
// detached from the request that produced it, with its own context.
type Broadcaster struct {
	store    core.RoutingStore
	registry core.AdapterRegistry
	target   core.BroadcastTarget
	recorder *core.OutcomeRecorder
	logger   core.Logger

	counterRetry  core.RetryPolicy
	deliveryRetry core.RetryPolicy
	taskTimeout   time.Duration

	wg sync.WaitGroup
}

type Config struct {
	Store    core.RoutingStore
	Registry core.AdapterRegistry
	Target   core.BroadcastTarget
	Recorder *core.OutcomeRecorder
	Logger   core.Logger
	// CounterRetry guards the advisory increment, DeliveryRetry the send.
	// Zero values fall back to the defaults in core.DefaultConfig.
	CounterRetry  core.RetryPolicy
	DeliveryRetry core.RetryPolicy
	TaskTimeout   time.Duration
}

func New(cfg Config) *Broadcaster {
	defaults := core.DefaultConfig()
	if cfg.CounterRetry.MaxAttempts == 0 {
		cfg.CounterRetry = defaults.CounterRetry.Policy()
	}
	if cfg.DeliveryRetry.MaxAttempts == 0 {
		cfg.DeliveryRetry = defaults.BroadcastRetry.Policy()
	}
	if cfg.DeliveryRetry.ShouldContinue == nil {
		cfg.DeliveryRetry.ShouldContinue = RetryableDelivery
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	return &Broadcaster{
		store:         cfg.Store,
		registry:      cfg.Registry,
		target:        cfg.Target,
		recorder:      cfg.Recorder,
		logger:        glog.Ensure(cfg.Logger),
		counterRetry:  cfg.CounterRetry,
		deliveryRetry: cfg.DeliveryRetry,
		taskTimeout:   cfg.TaskTimeout,
	}
}

// RetryableDelivery is the default continue-predicate for the delivery
// effect. Every failed delivery is treated as transient, including any
// non-2xx status a target reports. Callers with a deterministic-failure
// classification supply their own predicate through DeliveryRetry.
func RetryableDelivery(err error, attempt int) bool {
	return err != nil
}

// Schedule spawns the delivery task. It never blocks and never reports
// back to the caller.
func (b *Broadcaster) Schedule(task core.BroadcastTask) {
	if b == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.taskTimeout)
		defer cancel()
		b.deliver(ctx, task)
	}()
}

// Wait blocks until every scheduled task has finished. Used by shutdown
// and by tests.
func (b *Broadcaster) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}

func (b *Broadcaster) deliver(ctx context.Context, task core.BroadcastTask) {
	startedAt := time.Now()
	fields := map[string]any{
		"platform":    task.Proxy.Platform,
		"routing_key": task.Proxy.RoutingKey,
	}
	err := b.run(ctx, task)
	if err != nil {
		fields["error_code"] = core.ErrorBroadcastFailed
		b.logger.Error("broadcast delivery failed",
			"routing_key", task.Proxy.RoutingKey,
			"platform", task.Proxy.Platform,
			"error", err,
		)
	}
	b.recorder.Observe(ctx, startedAt, "broadcast", err, fields)
}

func (b *Broadcaster) run(ctx context.Context, task core.BroadcastTask) error {
	payload := map[string]any{}
	if err := json.Unmarshal(task.Body, &payload); err != nil {
		return err
	}

	adapter, err := b.registry.Build(task.Proxy)
	if err != nil {
		return err
	}

	event := adapter.Transform(payload, core.RequestMeta{
		Platform:   task.Proxy.Platform,
		RoutingKey: task.Proxy.RoutingKey,
		Headers:    task.Headers,
		ReceivedAt: task.ReceivedAt,
	})
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Bookkeeping is advisory. Delivery must not depend on it.
	if b.store != nil {
		counterErr := core.Retry(ctx, b.counterRetry, func(ctx context.Context) error {
			return b.store.IncrementEventCount(ctx, task.Proxy.ID)
		})
		if counterErr != nil {
			b.logger.Warn("event counter increment failed",
				"routing_key", task.Proxy.RoutingKey,
				"proxy_id", task.Proxy.ID,
				"error", counterErr,
			)
		}
	}

	if b.target == nil {
		return nil
	}
	return core.Retry(ctx, b.deliveryRetry, func(ctx context.Context) error {
		return b.target.Send(ctx, task.Proxy.RoutingKey, encoded)
	})
}
