package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/model"
)

// HistoryAppender persists history samples.
type HistoryAppender interface {
	Append(ctx context.Context, sample model.HistorySample) error
}

// Recorder writes history samples in background. At most one sample per
// device is accepted per interval unless forced.
type Recorder struct {
	store    HistoryAppender
	interval time.Duration
	queue    chan model.HistorySample
	logger   zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time

	written atomic.Uint64
	dropped atomic.Uint64
}

func NewRecorder(store HistoryAppender, interval time.Duration, size int, logger zerolog.Logger) *Recorder {
	if size <= 0 {
		size = 256
	}

	return &Recorder{
		store:    store,
		interval: interval,
		queue:    make(chan model.HistorySample, size),
		logger:   logger.With().Str("pkg", "recorder").Logger(),
		last:     make(map[string]time.Time),
	}
}

// Offer queues a sample of state unless the device was sampled less than
// interval before now.
func (r *Recorder) Offer(state model.LiveState, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.last[state.ID]
	if ok && now.Sub(last) < r.interval {
		return false
	}

	// A dropped sample leaves the interval open for the next reading.
	if !r.enqueue(state, now) {
		return false
	}
	r.last[state.ID] = now

	return true
}

// Force queues a sample of state regardless of the interval.
func (r *Recorder) Force(state model.LiveState, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enqueue(state, now) {
		return false
	}
	r.last[state.ID] = now

	return true
}

// Forget drops interval tracking of the device.
func (r *Recorder) Forget(id string) {
	r.mu.Lock()
	delete(r.last, id)
	r.mu.Unlock()
}

func (r *Recorder) enqueue(state model.LiveState, now time.Time) bool {
	sample := model.HistorySample{
		DeviceID:  state.ID,
		Level:     state.Level,
		Timestamp: now.Unix(),
	}

	select {
	case r.queue <- sample:
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warn().Str("id", state.ID).Msg("history queue is full, sample dropped")
		return false
	}
}

// Run writes queued samples until ctx is done. Samples still queued at
// that moment are flushed with a short deadline.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case sample := <-r.queue:
			r.write(ctx, sample)
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		select {
		case sample := <-r.queue:
			r.write(ctx, sample)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, sample model.HistorySample) {
	if err := r.store.Append(ctx, sample); err != nil {
		r.logger.Error().Err(err).Str("id", sample.DeviceID).Msg("unable to write history sample")
		return
	}

	r.written.Add(1)
}

// Written returns the number of persisted samples.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Dropped returns the number of samples lost on a full queue.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
