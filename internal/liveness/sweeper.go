// Package liveness turns silent devices offline.
package liveness

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/clock"
	"github.com/ferux/tankhub/internal/fleet"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/report"
	"github.com/ferux/tankhub/internal/templates"
)

const slowSweep = time.Second

// Broadcaster delivers frames to observers.
type Broadcaster interface {
	Broadcast(frame []byte) int
}

// Sampler writes a history sample bypassing the sampling interval.
type Sampler interface {
	Force(state model.LiveState, now time.Time) bool
}

// Sweeper periodically expires devices that stopped reporting.
type Sweeper struct {
	table    *fleet.Table
	fanout   Broadcaster
	sampler  Sampler
	reporter report.Reporter
	clock    clock.Clock
	timeout  time.Duration
	interval time.Duration
	logger   zerolog.Logger

	expired atomic.Uint64
}

// Options of the sweeper. Sampler may be nil to skip offline samples.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Sampler  Sampler
	Reporter report.Reporter
}

func New(table *fleet.Table, fanout Broadcaster, clk clock.Clock, opts Options, logger zerolog.Logger) *Sweeper {
	if opts.Reporter == nil {
		opts.Reporter = report.Noop{}
	}

	return &Sweeper{
		table:    table,
		fanout:   fanout,
		sampler:  opts.Sampler,
		reporter: opts.Reporter,
		clock:    clk,
		timeout:  opts.Timeout,
		interval: opts.Interval,
		logger:   logger.With().Str("pkg", "liveness").Logger(),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}

// Sweep marks offline every device silent for longer than the timeout
// and returns them.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) []model.LiveState {
	started := time.Now()

	expired := s.table.ExpireStale(now, s.timeout)
	for _, state := range expired {
		s.logger.Debug().Str("id", state.ID).Msg("went offline")

		s.fanout.Broadcast([]byte(templates.OfflineFrame(state.ID)))
		if s.sampler != nil {
			s.sampler.Force(state, now)
		}
	}

	s.expired.Add(uint64(len(expired)))

	if took := time.Since(started); took > slowSweep {
		s.logger.Error().Dur("took", took).Int("devices", s.table.Len()).Msg("sweep took too much time")
		s.reporter.Capture(ctx, errors.New("liveness sweep is slow"), map[string]interface{}{
			"took":    took.String(),
			"devices": s.table.Len(),
		})
	}

	return expired
}

// Expired returns the number of online to offline transitions so far.
func (s *Sweeper) Expired() uint64 {
	return s.expired.Load()
}
