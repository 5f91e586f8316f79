// Package pubsub fans frames out to connected sessions.
package pubsub

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/model"
)

// Subscriber is a connected session.
type Subscriber interface {
	ID() string
	// Send queues frame without blocking. model.ErrSlowConsumer is
	// returned when the outbox is full.
	Send(frame []byte) error
	Close() error
}

// Fanout stores observers and device sessions grouped by secret.
// Delivery is best effort and at most once.
type Fanout struct {
	mu        sync.RWMutex
	observers map[string]Subscriber
	devices   map[string]map[string]Subscriber
	bound     map[string]string

	dropped atomic.Uint64
	logger  zerolog.Logger
}

func New(logger zerolog.Logger) *Fanout {
	return &Fanout{
		observers: make(map[string]Subscriber),
		devices:   make(map[string]map[string]Subscriber),
		bound:     make(map[string]string),
		logger:    logger.With().Str("pkg", "pubsub").Logger(),
	}
}

// Join adds an observer.
func (f *Fanout) Join(sub Subscriber) {
	f.mu.Lock()
	f.observers[sub.ID()] = sub
	f.mu.Unlock()
}

// Leave removes an observer.
func (f *Fanout) Leave(sub Subscriber) {
	f.mu.Lock()
	delete(f.observers, sub.ID())
	f.mu.Unlock()
}

// Bind attaches a device session to the channel of secret. A session is
// bound to at most one secret.
func (f *Fanout) Bind(secret string, sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unbindLocked(sub.ID())

	subs, ok := f.devices[secret]
	if !ok {
		subs = make(map[string]Subscriber)
		f.devices[secret] = subs
	}

	subs[sub.ID()] = sub
	f.bound[sub.ID()] = secret
}

// Unbind detaches a device session.
func (f *Fanout) Unbind(sub Subscriber) {
	f.mu.Lock()
	f.unbindLocked(sub.ID())
	f.mu.Unlock()
}

func (f *Fanout) unbindLocked(id string) {
	secret, ok := f.bound[id]
	if !ok {
		return
	}

	delete(f.bound, id)
	delete(f.devices[secret], id)
	if len(f.devices[secret]) == 0 {
		delete(f.devices, secret)
	}
}

// Broadcast sends frame to every observer and returns the number of
// observers it was queued for. Observers unable to keep up are
// disconnected.
func (f *Fanout) Broadcast(frame []byte) int {
	f.mu.RLock()
	subs := make([]Subscriber, 0, len(f.observers))
	for _, sub := range f.observers {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	var sent int
	for _, sub := range subs {
		err := sub.Send(frame)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, model.ErrSlowConsumer):
			f.dropped.Add(1)
			f.logger.Warn().Str("session", sub.ID()).Msg("dropping slow observer")
			f.Leave(sub)
			_ = sub.Close()
		default:
			f.logger.Debug().Err(err).Str("session", sub.ID()).Msg("unable to send frame")
		}
	}

	return sent
}

// Push sends frame to device sessions bound to secret.
func (f *Fanout) Push(secret string, frame []byte) int {
	f.mu.RLock()
	subs := make([]Subscriber, 0, len(f.devices[secret]))
	for _, sub := range f.devices[secret] {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	var sent int
	for _, sub := range subs {
		if err := sub.Send(frame); err != nil {
			f.dropped.Add(1)
			f.logger.Debug().Err(err).Str("session", sub.ID()).Msg("unable to push frame")
			continue
		}
		sent++
	}

	return sent
}

// Disconnect closes and unbinds every session of secret.
func (f *Fanout) Disconnect(secret string) int {
	f.mu.Lock()
	subs := make([]Subscriber, 0, len(f.devices[secret]))
	for id, sub := range f.devices[secret] {
		subs = append(subs, sub)
		delete(f.bound, id)
	}
	delete(f.devices, secret)
	f.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			f.logger.Debug().Err(err).Str("session", sub.ID()).Msg("unable to close session")
		}
	}

	return len(subs)
}

// Observers returns the number of observers.
func (f *Fanout) Observers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.observers)
}

// Devices returns the number of bound device sessions.
func (f *Fanout) Devices() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.bound)
}

// Dropped returns the number of frames that could not be queued.
func (f *Fanout) Dropped() uint64 {
	return f.dropped.Load()
}
