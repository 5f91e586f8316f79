package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/clock"
)

// HistoryPruner deletes old history samples.
type HistoryPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Pruner enforces the history retention.
type Pruner struct {
	store     HistoryPruner
	clock     clock.Clock
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

func NewPruner(store HistoryPruner, clk clock.Clock, retention, interval time.Duration, logger zerolog.Logger) *Pruner {
	return &Pruner{
		store:     store,
		clock:     clk,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("pkg", "pruner").Logger(),
	}
}

// Run prunes once and then every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) {
	p.Prune(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune deletes samples older than the retention.
func (p *Pruner) Prune(ctx context.Context) int {
	cutoff := p.clock.Now().Add(-p.retention)

	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error().Err(err).Msg("unable to prune history")
		return 0
	}

	if deleted > 0 {
		p.logger.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("history pruned")
	}

	return deleted
}
