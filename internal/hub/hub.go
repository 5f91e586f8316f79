// Package hub wires the fleet table, the session gatekeeper, telemetry
// processing, liveness and broadcasting into one state container.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/clock"
	"github.com/ferux/tankhub/internal/config"
	"github.com/ferux/tankhub/internal/fleet"
	"github.com/ferux/tankhub/internal/gatekeeper"
	"github.com/ferux/tankhub/internal/liveness"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/pairing"
	"github.com/ferux/tankhub/internal/pubsub"
	"github.com/ferux/tankhub/internal/report"
	"github.com/ferux/tankhub/internal/signature"
	"github.com/ferux/tankhub/internal/telemetry"
)

// Limits of history queries.
const (
	DeviceHistoryLimit = 100
	FleetHistoryLimit  = 10000
)

// CredentialStore keeps durable device records.
type CredentialStore interface {
	Find(ctx context.Context, secret string) (model.DeviceRecord, error)
	FindByHardwareID(ctx context.Context, hardwareID string) (model.DeviceRecord, error)
	FindByID(ctx context.Context, id string) (model.DeviceRecord, error)
	List(ctx context.Context) ([]model.DeviceRecord, error)
	Insert(ctx context.Context, rec model.DeviceRecord) error
	UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (model.DeviceRecord, error)
	UpdateIP(ctx context.Context, secret, ip string) error
	Delete(ctx context.Context, id string) (model.DeviceRecord, error)
}

// HistoryStore keeps level history.
type HistoryStore interface {
	Append(ctx context.Context, sample model.HistorySample) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Samples(ctx context.Context, id string, since time.Time, limit int) ([]model.HistorySample, error)
	FleetSamples(ctx context.Context, since time.Time, limit int) ([]model.HistorySample, error)
}

// Handoff pushes credentials to a node being paired.
type Handoff interface {
	Handoff(ctx context.Context, ip string, port int, creds pairing.Credentials) error
}

// Deps are collaborators of the hub. Reporter, Notifier and Clock are
// optional.
type Deps struct {
	Store    CredentialStore
	History  HistoryStore
	Handoff  Handoff
	Reporter report.Reporter
	Notifier telemetry.Notifier
	Clock    clock.Clock
}

// Hub is the telemetry hub.
type Hub struct {
	cfg      config.Application
	store    CredentialStore
	history  HistoryStore
	handoff  Handoff
	reporter report.Reporter
	clock    clock.Clock
	logger   zerolog.Logger

	table      *fleet.Table
	reconciler *fleet.Reconciler
	fanout     *pubsub.Fanout
	gate       *gatekeeper.Gatekeeper
	processor  *telemetry.Processor
	recorder   *telemetry.Recorder
	pruner     *telemetry.Pruner
	sweeper    *liveness.Sweeper

	bootTime time.Time
}

func New(cfg config.Application, deps Deps, logger zerolog.Logger) (*Hub, error) {
	scheme, err := signature.New(cfg.Hub.SignatureScheme)
	if err != nil {
		return nil, err
	}

	if deps.Reporter == nil {
		deps.Reporter = report.Noop{}
	}

	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	logger = logger.With().Str("pkg", "hub").Logger()

	h := &Hub{
		cfg:      cfg,
		store:    deps.Store,
		history:  deps.History,
		handoff:  deps.Handoff,
		reporter: deps.Reporter,
		clock:    deps.Clock,
		logger:   logger,
		table:    fleet.NewTable(),
		fanout:   pubsub.New(logger),
		bootTime: deps.Clock.Now(),
	}

	h.reconciler = fleet.NewReconciler(h.table, h.store, cfg.Hub.ReconcileTimeout.Std(), logger)
	h.gate = gatekeeper.New(h.table, h.store, h.reconciler, h.fanout, logger)
	h.recorder = telemetry.NewRecorder(h.history, cfg.History.Interval.Std(), cfg.History.QueueSize, logger)
	h.pruner = telemetry.NewPruner(h.history, h.clock, cfg.History.Retention.Std(), cfg.History.PruneInterval.Std(), logger)

	h.processor = telemetry.NewProcessor(telemetry.Deps{
		Table:      h.table,
		Validator:  h.gate,
		Store:      h.store,
		Reconciler: h.reconciler,
		Scheme:     scheme,
		Fanout:     h.fanout,
		Sampler:    h.recorder,
		Notifier:   deps.Notifier,
		Clock:      h.clock,
	}, logger)

	var offlineSampler liveness.Sampler
	if !cfg.Hub.SkipOfflineSample {
		offlineSampler = h.recorder
	}

	h.sweeper = liveness.New(h.table, h.fanout, h.clock, liveness.Options{
		Timeout:  cfg.Hub.OfflineTimeout.Std(),
		Interval: cfg.Hub.SweepInterval.Std(),
		Sampler:  offlineSampler,
		Reporter: h.reporter,
	}, logger)

	return h, nil
}

// Start loads the fleet from the credential store. The load is retried
// with exponential backoff up to the configured number of attempts.
func (h *Hub) Start(ctx context.Context) error {
	attempts := h.cfg.Hub.StartupAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := 500 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = h.reconciler.Reconcile(ctx, true); err == nil {
			h.logger.Info().Int("devices", h.table.Len()).Int("attempt", attempt).Msg("fleet loaded")
			return nil
		}

		h.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("unable to load fleet")
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.clock.After(delay):
		}

		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}

	return fmt.Errorf("loading fleet after %d attempts: %w", attempts, err)
}

// Run runs background workers until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, run := range []func(context.Context){h.sweeper.Run, h.recorder.Run, h.pruner.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	wg.Wait()
}

// Stats is a summary of the hub state.
type Stats struct {
	BootTime       time.Time
	Devices        int
	Sessions       int
	Observers      int
	Hydrated       bool
	WentOffline    uint64
	SamplesWritten uint64
	SamplesDropped uint64
	FramesDropped  uint64
}

func (h *Hub) Stats() Stats {
	return Stats{
		BootTime:       h.bootTime,
		Devices:        h.table.Len(),
		Sessions:       h.fanout.Devices(),
		Observers:      h.fanout.Observers(),
		Hydrated:       h.reconciler.Hydrated(),
		WentOffline:    h.sweeper.Expired(),
		SamplesWritten: h.recorder.Written(),
		SamplesDropped: h.recorder.Dropped(),
		FramesDropped:  h.fanout.Dropped(),
	}
}
