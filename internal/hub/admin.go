package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/pairing"
	"github.com/ferux/tankhub/internal/templates"
)

// Live returns the current public view of the fleet.
func (h *Hub) Live() []model.PublicView {
	return h.table.SnapshotAll()
}

// Devices returns durable records of the fleet.
func (h *Hub) Devices(ctx context.Context) ([]model.DeviceRecord, error) {
	return h.store.List(ctx)
}

// History returns recent samples of one tank, newest first.
func (h *Hub) History(ctx context.Context, id string, since time.Time) ([]model.HistorySample, error) {
	return h.history.Samples(ctx, id, since, DeviceHistoryLimit)
}

// FleetHistory returns recent samples of every tank, newest first.
func (h *Hub) FleetHistory(ctx context.Context, since time.Time) ([]model.HistorySample, error) {
	return h.history.FleetSamples(ctx, since, FleetHistoryLimit)
}

// UpdateConfig applies patch to the tank with id. The live state is
// updated and broadcast even when persisting fails.
func (h *Hub) UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (model.PublicView, error) {
	if err := patch.Validate(); err != nil {
		return model.PublicView{}, err
	}

	secret, ok := h.table.SecretByID(id)
	if !ok {
		if _, err := h.store.FindByID(ctx, id); err != nil {
			return model.PublicView{}, fmt.Errorf("tank %s: %w", id, err)
		}

		if err := h.reconciler.Reconcile(ctx, true); err != nil {
			return model.PublicView{}, err
		}

		if secret, ok = h.table.SecretByID(id); !ok {
			return model.PublicView{}, fmt.Errorf("tank %s: %w", id, model.ErrNotFound)
		}
	}

	_, after, ok := h.table.Update(secret, func(s *model.LiveState) bool {
		s.ApplyConfig(patch)
		return true
	})
	if !ok {
		return model.PublicView{}, fmt.Errorf("tank %s: %w", id, model.ErrNotFound)
	}

	if _, err := h.store.UpdateConfig(ctx, id, patch); err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("unable to persist config")
		h.reporter.Capture(ctx, err, map[string]interface{}{"id": id})
	}

	view := after.Public()
	h.fanout.Broadcast([]byte(templates.UpdateFrame(&view)))
	h.fanout.Push(secret, []byte(templates.ConfigFrame(after.Capacity, after.Name)))
	if patch.Height != nil {
		h.fanout.Push(secret, []byte(templates.PhysicalConfigFrame(after.Height)))
	}

	h.logger.Info().Str("id", id).Msg("config updated")

	return view, nil
}

// PairRequest describes a node to pair.
type PairRequest struct {
	TargetIP   string
	Port       int
	Name       string
	Location   string
	HardwareID string
	Height     int
	Capacity   int
	// ServerURL is handed to the node when the hub address is not
	// configured.
	ServerURL string
}

// Pair creates a tank for the node at req.TargetIP and hands it the
// credentials.
func (h *Hub) Pair(ctx context.Context, req PairRequest) (model.DeviceRecord, error) {
	req.TargetIP = strings.TrimSpace(req.TargetIP)
	req.Name = strings.TrimSpace(req.Name)
	if req.TargetIP == "" || req.Name == "" {
		return model.DeviceRecord{}, fmt.Errorf("target ip and name are required: %w", model.ErrInvalidConfig)
	}

	if req.HardwareID != "" {
		_, err := h.store.FindByHardwareID(ctx, req.HardwareID)
		switch {
		case err == nil:
			return model.DeviceRecord{}, fmt.Errorf("device %s is already paired: %w", req.HardwareID, model.ErrConflict)
		case !errors.Is(err, model.ErrNotFound):
			return model.DeviceRecord{}, err
		}
	}

	serverURL := h.cfg.Pairing.ServerURL
	if serverURL == "" {
		serverURL = req.ServerURL
	}

	creds := pairing.NewCredentials(serverURL)

	rec := model.DeviceRecord{
		ID:             creds.TankID,
		Name:           req.Name,
		Location:       req.Location,
		Capacity:       req.Capacity,
		Height:         req.Height,
		AlertThreshold: model.DefaultAlertThreshold,
		Secret:         creds.Secret,
		HardwareID:     req.HardwareID,
		IP:             req.TargetIP,
	}
	if rec.Location == "" {
		rec.Location = model.DefaultLocation
	}
	if rec.Capacity <= 0 {
		rec.Capacity = model.DefaultCapacity
	}
	if rec.Height <= 0 {
		rec.Height = model.DefaultHeight
	}

	if err := h.handoff.Handoff(ctx, req.TargetIP, req.Port, creds); err != nil {
		h.logger.Warn().Err(err).Str("ip", req.TargetIP).Msg("unable to hand credentials over")
		return model.DeviceRecord{}, fmt.Errorf("%w: %v", model.ErrUnreachable, err)
	}

	if err := h.store.Insert(ctx, rec); err != nil {
		return model.DeviceRecord{}, err
	}

	now := h.clock.Now()
	// fresh secrets are never tombstoned
	state, _ := h.table.Upsert(rec.Secret, rec, func(s *model.LiveState) {
		s.Level = 0
		s.Status = model.StatusOnline
		s.Online = true
		s.LastSeen = now
	})

	view := state.Public()
	h.fanout.Broadcast([]byte(templates.UpdateFrame(&view)))

	h.logger.Info().Str("id", rec.ID).Str("ip", req.TargetIP).Msg("tank paired")

	return rec, nil
}

// DecommissionResult tells which parts of a tank were purged.
type DecommissionResult struct {
	ID           string `json:"id"`
	DBPurged     bool   `json:"dbPurged"`
	MemoryPurged bool   `json:"memoryPurged"`
	Sessions     int    `json:"sessions"`
}

// Decommission deletes the tank with id. The live state is purged and
// device sessions are closed even when the credential store fails, in
// which case the error is returned along with the partial result.
func (h *Hub) Decommission(ctx context.Context, id string) (DecommissionResult, error) {
	res := DecommissionResult{ID: id}

	var secret string
	rec, dbErr := h.store.Delete(ctx, id)
	switch {
	case dbErr == nil:
		res.DBPurged = true
		secret = rec.Secret
	case errors.Is(dbErr, model.ErrNotFound):
		dbErr = nil
	default:
		h.logger.Error().Err(dbErr).Str("id", id).Msg("unable to delete tank")
		h.reporter.Capture(ctx, dbErr, map[string]interface{}{"id": id})
	}

	memSecret, removed := h.table.RemoveByPublicID(id)
	res.MemoryPurged = removed
	if secret == "" {
		secret = memSecret
	}

	if !res.DBPurged && !res.MemoryPurged && dbErr == nil {
		return res, fmt.Errorf("tank %s: %w", id, model.ErrNotFound)
	}

	if res.DBPurged || res.MemoryPurged {
		h.fanout.Broadcast([]byte(templates.DecommissionedFrame(id)))
	}

	if secret != "" {
		res.Sessions = h.fanout.Disconnect(secret)
	}

	h.recorder.Forget(id)

	if dbErr != nil {
		return res, fmt.Errorf("deleting tank %s: %w", id, dbErr)
	}

	if err := h.reconciler.Reconcile(ctx, true); err != nil {
		h.logger.Warn().Err(err).Msg("unable to reconcile after decommission")
	}

	h.logger.Info().
		Str("id", id).
		Bool("db", res.DBPurged).
		Bool("memory", res.MemoryPurged).
		Int("sessions", res.Sessions).
		Msg("tank decommissioned")

	return res, nil
}
