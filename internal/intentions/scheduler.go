package intentions

import (
	"context"
	"fmt"
	"time"
)

// FireHandler dispatches the actual side effect a due intention names
// (Notify/Callback/Log or whatever action_type the host recognizes). The
// scheduler calls it once per due intention and records whether it
// succeeded; it never interprets action_type itself.
type FireHandler func(ctx context.Context, in Intention) error

// Scheduler periodically checks for due intentions and fires them through
// a host-supplied handler.
type Scheduler struct {
	store   *Store
	handler FireHandler
}

// NewScheduler builds a scheduler backed by store, dispatching due
// intentions through handler.
func NewScheduler(store *Store, handler FireHandler) *Scheduler {
	return &Scheduler{store: store, handler: handler}
}

// Tick loads every due intention and fires each through the handler,
// recording the outcome regardless of whether the handler errored. It
// returns the number of intentions fired and the first handler error
// encountered, if any, after attempting every due intention.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.Due(ctx, now)
	if err != nil {
		return 0, err
	}

	var firstErr error
	fired := 0
	for _, in := range due {
		handlerErr := s.fireOne(ctx, in, now)
		fired++
		if handlerErr != nil && firstErr == nil {
			firstErr = handlerErr
		}
	}
	return fired, firstErr
}

func (s *Scheduler) fireOne(ctx context.Context, in Intention, now time.Time) error {
	var handlerErr error
	detail := ""
	if s.handler != nil {
		handlerErr = s.handler(ctx, in)
		if handlerErr != nil {
			detail = handlerErr.Error()
		}
	} else {
		handlerErr = fmt.Errorf("no fire handler configured")
		detail = handlerErr.Error()
	}

	if err := s.store.MarkFired(ctx, in.ID, now, handlerErr == nil, detail); err != nil {
		return err
	}
	return handlerErr
}

// Run blocks, ticking every interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := s.Tick(ctx, now.UTC()); err != nil {
				continue
			}
		}
	}
}
