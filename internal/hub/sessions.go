package hub

import (
	"context"

	"github.com/ferux/tankhub/internal/fcontext"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/pubsub"
	"github.com/ferux/tankhub/internal/templates"
	"github.com/ferux/tankhub/internal/wire"
)

// Identify admits a device session. Rejected sessions are closed. The
// address the device connected from is remembered for later pairing
// diagnostics.
func (h *Hub) Identify(ctx context.Context, session pubsub.Subscriber, secret, remoteIP string) bool {
	if !h.gate.Identify(ctx, session, secret) {
		h.logger.Debug().
			Str("session", session.ID()).
			Str("secret", fcontext.ShortSecret(secret)).
			Msg("identify rejected")

		return false
	}

	if remoteIP != "" {
		if err := h.store.UpdateIP(ctx, secret, remoteIP); err != nil {
			h.logger.Warn().Err(err).Msg("unable to remember device address")
		}
	}

	return true
}

// Telemetry applies msg received on a session identified with
// boundSecret. Messages sent before identifying or carrying another
// secret are rejected.
func (h *Hub) Telemetry(ctx context.Context, boundSecret string, msg wire.Telemetry) error {
	if boundSecret == "" || msg.Secret != boundSecret {
		return model.ErrUnauthorized
	}

	return h.processor.Process(ctx, msg)
}

// Disconnect forgets a closed device session. The device stays online
// until the liveness sweeper decides otherwise.
func (h *Hub) Disconnect(session pubsub.Subscriber) {
	h.fanout.Unbind(session)
}

// JoinObserver subscribes an observer and sends it the fleet snapshot.
// An empty table triggers one reconciliation first.
func (h *Hub) JoinObserver(ctx context.Context, sub pubsub.Subscriber) error {
	h.fanout.Join(sub)

	views := h.table.SnapshotAll()
	if len(views) == 0 {
		if err := h.reconciler.Reconcile(ctx, false); err != nil {
			h.logger.Warn().Err(err).Msg("unable to reconcile for snapshot")
		}

		views = h.table.SnapshotAll()
	}

	if err := sub.Send([]byte(templates.SnapshotFrame(views))); err != nil {
		h.fanout.Leave(sub)
		return err
	}

	return nil
}

// LeaveObserver unsubscribes an observer.
func (h *Hub) LeaveObserver(sub pubsub.Subscriber) {
	h.fanout.Leave(sub)
}
