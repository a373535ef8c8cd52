package broadcast

import (
	"context"
	"errors"

	"github.com/goliatone/go-hookrelay/core"
)

// FanoutTarget delivers one event to every wrapped target. A failure in one
// target does not stop the others; errors are joined so the retry layer sees
// the whole picture.
type FanoutTarget struct {
	targets []core.BroadcastTarget
}

func NewFanoutTarget(targets ...core.BroadcastTarget) *FanoutTarget {
	kept := make([]core.BroadcastTarget, 0, len(targets))
	for _, target := range targets {
		if target != nil {
			kept = append(kept, target)
		}
	}
	return &FanoutTarget{targets: kept}
}

func (t *FanoutTarget) Send(ctx context.Context, routingKey string, event []byte) error {
	if t == nil || len(t.targets) == 0 {
		return nil
	}
	var errs []error
	for _, target := range t.targets {
		if err := target.Send(ctx, routingKey, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ core.BroadcastTarget = (*FanoutTarget)(nil)
