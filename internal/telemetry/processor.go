// Package telemetry applies device reports to the fleet and keeps the
// history of tank levels.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/clock"
	"github.com/ferux/tankhub/internal/fcontext"
	"github.com/ferux/tankhub/internal/fleet"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/signature"
	"github.com/ferux/tankhub/internal/templates"
	"github.com/ferux/tankhub/internal/wire"
)

// Validator checks that a secret belongs to a paired device.
type Validator interface {
	ValidateSecret(ctx context.Context, secret string) bool
}

// CredentialFinder looks durable records up by secret.
type CredentialFinder interface {
	Find(ctx context.Context, secret string) (model.DeviceRecord, error)
}

// Reconciler refreshes the fleet table from durable records.
type Reconciler interface {
	Reconcile(ctx context.Context, force bool) error
}

// Broadcaster delivers frames to observers.
type Broadcaster interface {
	Broadcast(frame []byte) int
}

// Sampler accepts history samples.
type Sampler interface {
	Offer(state model.LiveState, now time.Time) bool
}

// Alert is a level alert raised by telemetry.
type Alert struct {
	Band      model.Band
	ID        string
	Name      string
	Level     int
	Threshold int
}

// Notifier is told about raised alerts. Notify must not block.
type Notifier interface {
	Notify(alert Alert)
}

// Processor applies telemetry messages.
type Processor struct {
	table      *fleet.Table
	validator  Validator
	store      CredentialFinder
	reconciler Reconciler
	scheme     signature.Scheme
	fanout     Broadcaster
	sampler    Sampler
	notifier   Notifier
	clock      clock.Clock
	logger     zerolog.Logger
}

// Deps are collaborators of the processor. Notifier is optional.
type Deps struct {
	Table      *fleet.Table
	Validator  Validator
	Store      CredentialFinder
	Reconciler Reconciler
	Scheme     signature.Scheme
	Fanout     Broadcaster
	Sampler    Sampler
	Notifier   Notifier
	Clock      clock.Clock
}

func NewProcessor(deps Deps, logger zerolog.Logger) *Processor {
	return &Processor{
		table:      deps.Table,
		validator:  deps.Validator,
		store:      deps.Store,
		reconciler: deps.Reconciler,
		scheme:     deps.Scheme,
		fanout:     deps.Fanout,
		sampler:    deps.Sampler,
		notifier:   deps.Notifier,
		clock:      deps.Clock,
		logger:     logger.With().Str("pkg", "telemetry").Logger(),
	}
}

// Process validates and applies msg. Rejected messages are reported
// with model.ErrUnauthorized or model.ErrNotFound and must be dropped
// without answering the device.
func (p *Processor) Process(ctx context.Context, msg wire.Telemetry) error {
	logger := p.logger.With().
		Str("secret", fcontext.ShortSecret(msg.Secret)).
		Str("session", fcontext.SessionID(ctx)).
		Logger()

	if !p.validator.ValidateSecret(ctx, msg.Secret) {
		logger.Debug().Msg("telemetry with unknown secret")
		return model.ErrUnauthorized
	}

	if msg.Signature == "" || !p.scheme.Verify(msg.Secret, msg.Payload(), msg.Signature) {
		logger.Debug().Msg("telemetry with bad signature")
		return model.ErrUnauthorized
	}

	now := p.clock.Now()
	apply := func(s *model.LiveState) bool {
		s.Level = msg.Level
		if msg.HasStatus {
			s.Status = msg.Status
		}
		s.RSSI = msg.RSSI
		s.LastSeen = now
		s.Online = true
		s.Volume = model.VolumeOf(s.Level, s.Capacity)
		s.Band = s.Classify()

		return true
	}

	before, after, ok := p.table.Update(msg.Secret, apply)
	if !ok {
		if !p.fallback(ctx, msg.Secret, logger) {
			logger.Debug().Msg("telemetry for unknown device")
			return model.ErrNotFound
		}

		before, after, ok = p.table.Update(msg.Secret, apply)
		if !ok {
			logger.Debug().Msg("telemetry for device missing after reconcile")
			return model.ErrNotFound
		}
	}

	if p.sampler != nil {
		p.sampler.Offer(after, now)
	}

	p.publish(before, after)

	return nil
}

// fallback reports whether secret exists in the credential store and the
// table was reloaded.
func (p *Processor) fallback(ctx context.Context, secret string, logger zerolog.Logger) bool {
	if _, err := p.store.Find(ctx, secret); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Warn().Err(err).Msg("unable to look device up")
		}

		return false
	}

	if err := p.reconciler.Reconcile(ctx, true); err != nil {
		logger.Warn().Err(err).Msg("unable to reconcile")
		return false
	}

	return true
}

func (p *Processor) publish(before, after model.LiveState) {
	view := after.Public()
	if !view.Equal(before.Public()) {
		p.fanout.Broadcast([]byte(templates.UpdateFrame(&view)))
	}

	alert := Alert{
		Band:      after.Band,
		ID:        after.ID,
		Name:      after.Name,
		Level:     after.Level,
		Threshold: after.AlertThreshold,
	}

	// observers hear about every classified reading
	switch after.Band {
	case model.BandLow:
		p.fanout.Broadcast([]byte(templates.AlertLowFrame(alert.ID, alert.Name, alert.Level, alert.Threshold)))
	case model.BandFull:
		p.fanout.Broadcast([]byte(templates.AlertFullFrame(alert.ID, alert.Name, alert.Level)))
	default:
		return
	}

	// the notifier only on entering a band
	if after.Band == before.Band {
		return
	}

	p.logger.Info().
		Str("id", alert.ID).
		Stringer("band", alert.Band).
		Int("level", alert.Level).
		Msg("level alert")

	if p.notifier != nil {
		p.notifier.Notify(alert)
	}
}
