// Package runtime supervises rook's background loops: periodic memory
// consolidation and intention firing. Both run as independent tickers under
// one errgroup so a caller can start and stop them together.
package runtime

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rook/internal/consolidation"
	"rook/internal/intentions"
)

// Config controls which background loops run and how often.
type Config struct {
	ConsolidationInterval time.Duration
	ConsolidationEnabled  bool
	RunConsolidationNow   bool

	IntentionInterval time.Duration
	IntentionsEnabled bool
}

// Runtime owns the background consolidation and intention loops.
type Runtime struct {
	cfg Config

	consolidator *consolidation.Manager
	scheduler    *intentions.Scheduler
}

// New builds a Runtime. Either dependency may be nil if the corresponding
// loop is disabled in cfg; Run skips a nil dependency's loop regardless of
// cfg, so callers don't need to keep the two in sync by hand.
func New(cfg Config, consolidator *consolidation.Manager, scheduler *intentions.Scheduler) *Runtime {
	return &Runtime{cfg: cfg, consolidator: consolidator, scheduler: scheduler}
}

// Run starts the enabled background loops and blocks until ctx is canceled
// or one of them returns an error; with no loop enabled it returns nil at
// once. Each loop runs in its own goroutine under
// an errgroup.WithContext, so a hard failure in one loop cancels the other.
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if r.cfg.ConsolidationEnabled && r.consolidator != nil {
		g.Go(func() error {
			return r.runConsolidationLoop(ctx)
		})
	}
	if r.cfg.IntentionsEnabled && r.scheduler != nil {
		g.Go(func() error {
			return r.runIntentionLoop(ctx)
		})
	}

	return g.Wait()
}

func (r *Runtime) runConsolidationLoop(ctx context.Context) error {
	if r.cfg.RunConsolidationNow {
		r.tickConsolidation()
	}

	interval := r.cfg.ConsolidationInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tickConsolidation()
		}
	}
}

func (r *Runtime) tickConsolidation() {
	result, err := r.consolidator.Consolidate(time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("consolidation run failed")
		return
	}
	log.Info().
		Int("consolidated", result.Consolidated).
		Int("unconsolidated", result.Unconsolidated).
		Int("advanced", result.Advanced).
		Int("skipped", result.Skipped).
		Int64("duration_ms", result.DurationMS()).
		Msg("consolidation run completed")
}

func (r *Runtime) runIntentionLoop(ctx context.Context) error {
	interval := r.cfg.IntentionInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			fired, err := r.scheduler.Tick(ctx, now.UTC())
			if err != nil {
				log.Warn().Err(err).Int("fired", fired).Msg("intention tick had a failed fire")
				continue
			}
			if fired > 0 {
				log.Info().Int("fired", fired).Msg("intention tick fired due intentions")
			}
		}
	}
}
