// Package gatekeeper admits device sessions.
package gatekeeper

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/fcontext"
	"github.com/ferux/tankhub/internal/fleet"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/pubsub"
	"github.com/ferux/tankhub/internal/templates"
)

// CredentialFinder looks durable records up by secret.
type CredentialFinder interface {
	Find(ctx context.Context, secret string) (model.DeviceRecord, error)
}

// Reconciler refreshes the fleet table from durable records.
type Reconciler interface {
	Reconcile(ctx context.Context, force bool) error
}

// Binder attaches sessions to per secret channels.
type Binder interface {
	Bind(secret string, sub pubsub.Subscriber)
}

type Gatekeeper struct {
	table      *fleet.Table
	store      CredentialFinder
	reconciler Reconciler
	binder     Binder
	logger     zerolog.Logger
}

func New(table *fleet.Table, store CredentialFinder, reconciler Reconciler, binder Binder, logger zerolog.Logger) *Gatekeeper {
	return &Gatekeeper{
		table:      table,
		store:      store,
		reconciler: reconciler,
		binder:     binder,
		logger:     logger.With().Str("pkg", "gatekeeper").Logger(),
	}
}

// ValidateSecret reports whether secret belongs to a paired device. The
// live table is consulted first, the credential store on a miss.
// Unknown secrets are never remembered.
func (g *Gatekeeper) ValidateSecret(ctx context.Context, secret string) bool {
	_, ok := g.lookup(ctx, secret)
	return ok
}

func (g *Gatekeeper) lookup(ctx context.Context, secret string) (*model.DeviceRecord, bool) {
	if secret == "" {
		return nil, false
	}

	if _, ok := g.table.Get(secret); ok {
		return nil, true
	}

	rec, err := g.store.Find(ctx, secret)
	switch {
	case err == nil:
		return &rec, true
	case errors.Is(err, model.ErrNotFound):
		g.logger.Debug().Str("secret", fcontext.ShortSecret(secret)).Msg("unknown secret")
	default:
		g.logger.Warn().Err(err).Str("secret", fcontext.ShortSecret(secret)).Msg("unable to check secret")
	}

	return nil, false
}

// Identify admits session as the device owning secret. Rejected
// sessions are closed. Admitted sessions are bound to the channel of the
// secret and receive the physical configuration of the tank.
func (g *Gatekeeper) Identify(ctx context.Context, session pubsub.Subscriber, secret string) bool {
	rec, ok := g.lookup(ctx, secret)
	if !ok {
		_ = session.Close()
		return false
	}

	state, ok := g.table.Get(secret)
	if !ok {
		if err := g.reconciler.Reconcile(ctx, true); err != nil {
			g.logger.Warn().Err(err).Msg("unable to reconcile on identify")
		}

		state, ok = g.table.Get(secret)
	}

	if !ok && rec != nil {
		state, ok = g.table.Upsert(secret, *rec, nil)
	}

	if !ok {
		// decommissioned while the record was being read
		g.logger.Debug().Str("secret", fcontext.ShortSecret(secret)).Msg("secret was removed")
		_ = session.Close()
		return false
	}

	g.binder.Bind(secret, session)

	g.logger.Debug().
		Str("session", session.ID()).
		Str("id", state.ID).
		Msg("device identified")

	if state.Height > 0 {
		if err := session.Send([]byte(templates.PhysicalConfigFrame(state.Height))); err != nil {
			g.logger.Debug().Err(err).Str("session", session.ID()).Msg("unable to push physical config")
		}
	}

	return true
}
