package fleet

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ferux/tankhub/internal/model"
)

const reconcileKey = "reconcile"

// RecordLister lists durable device records.
type RecordLister interface {
	List(ctx context.Context) ([]model.DeviceRecord, error)
}

// Reconciler rebuilds the table from the durable records. Concurrent
// calls share one load.
type Reconciler struct {
	table   *Table
	store   RecordLister
	timeout time.Duration
	logger  zerolog.Logger

	group    singleflight.Group
	hydrated atomic.Bool
	loads    atomic.Uint64
}

// NewReconciler makes a reconciler. Every load is limited by timeout.
func NewReconciler(table *Table, store RecordLister, timeout time.Duration, logger zerolog.Logger) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Reconciler{
		table:   table,
		store:   store,
		timeout: timeout,
		logger:  logger.With().Str("pkg", "fleet").Logger(),
	}
}

// Reconcile waits for a load of the durable records. With force set the
// load in flight, if any, is not joined and a fresh one is started.
// Cancelling ctx stops waiting but not the load itself.
func (r *Reconciler) Reconcile(ctx context.Context, force bool) error {
	if force {
		r.group.Forget(reconcileKey)
	}

	ch := r.group.DoChan(reconcileKey, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		return nil, r.load(lctx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (r *Reconciler) load(ctx context.Context) error {
	started := time.Now()
	gen := r.table.Generation()

	records, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("unable to load device records")
		return fmt.Errorf("loading records: %w", err)
	}

	if !r.table.ReplaceSince(gen, records) {
		r.logger.Debug().Uint64("generation", gen).Msg("stale load discarded")
		return nil
	}

	r.hydrated.Store(true)
	r.loads.Add(1)

	r.logger.Debug().
		Int("devices", r.table.Len()).
		Dur("took", time.Since(started)).
		Msg("fleet reconciled")

	return nil
}

// Hydrated reports whether at least one load has completed.
func (r *Reconciler) Hydrated() bool {
	return r.hydrated.Load()
}

// Loads returns the number of completed loads.
func (r *Reconciler) Loads() uint64 {
	return r.loads.Load()
}
