package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/ferux/tankhub"
	"github.com/ferux/tankhub/internal/fcontext"
	"github.com/ferux/tankhub/internal/hub"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/templates"
	"github.com/ferux/tankhub/internal/wire"
)

// Default history ranges in minutes.
const (
	defaultTankRange  = 24 * 60
	defaultFleetRange = 7 * 24 * 60
	maxBodySize       = 16 << 10
)

func (api *HTTP) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats := api.hub.Stats()

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)

	(&templates.MarshalData{
		Revision:     tankhub.Revision,
		Branch:       tankhub.Branch,
		Environment:  tankhub.Env,
		BootTime:     api.bootTime.String(),
		Uptime:       time.Since(api.bootTime).Seconds(),
		RequestCount: int(atomic.LoadInt64(&api.requestCount)),
		Devices:      stats.Devices,
		Observers:    stats.Observers,
	}).WriteJSON(w)
}

func (api *HTTP) handleTanks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := api.hub.Devices(ctx)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	if devices == nil {
		devices = []model.DeviceRecord{}
	}

	asJSON(ctx, w, devices, http.StatusOK)
}

func (api *HTTP) handleLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)

	templates.WriteViews(w, api.hub.Live())
}

func (api *HTTP) handleUpdateTank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		api.serveError(ctx, w, r, model.ServiceError{Message: "unable to read body", Code: http.StatusBadRequest})
		return
	}

	patch, err := wire.ParsePatch(body)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	view, err := api.hub.UpdateConfig(ctx, id, patch)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)

	templates.WriteView(w, &view)
}

type decommissionResponse struct {
	Success bool `json:"success"`
	hub.DecommissionResult
	Error string `json:"error,omitempty"`
}

func (api *HTTP) handleDecommission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	res, err := api.hub.Decommission(ctx, id)
	switch {
	case err == nil:
		asJSON(ctx, w, decommissionResponse{Success: true, DecommissionResult: res}, http.StatusOK)
	case errors.Is(err, model.ErrNotFound):
		api.serveError(ctx, w, r, err)
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("id", id).Msg("decommission is partial")
		api.notifier.CaptureRequest(r, err, true)
		asJSON(ctx, w, decommissionResponse{DecommissionResult: res, Error: err.Error()}, http.StatusInternalServerError)
	}
}

func (api *HTTP) handleTankHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, err := sinceOf(r, defaultTankRange)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	samples, err := api.hub.History(ctx, mux.Vars(r)["id"], since)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	if samples == nil {
		samples = []model.HistorySample{}
	}

	asJSON(ctx, w, samples, http.StatusOK)
}

type fleetTank struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fleetHistory carries names next to samples so charts can label series.
type fleetHistory struct {
	History []model.HistorySample `json:"history"`
	Tanks   []fleetTank           `json:"tanks"`
}

func (api *HTTP) handleFleetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, err := sinceOf(r, defaultFleetRange)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	samples, err := api.hub.FleetHistory(ctx, since)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	if samples == nil {
		samples = []model.HistorySample{}
	}

	live := api.hub.Live()
	tanks := make([]fleetTank, 0, len(live))
	for _, view := range live {
		tanks = append(tanks, fleetTank{ID: view.ID, Name: view.Name})
	}

	asJSON(ctx, w, fleetHistory{History: samples, Tanks: tanks}, http.StatusOK)
}

// sinceOf reads the range query parameter given in minutes.
func sinceOf(r *http.Request, def int) (time.Time, error) {
	minutes := def
	if raw := r.URL.Query().Get("range"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return time.Time{}, model.ServiceError{
				Message:   "range must be a positive number of minutes",
				RequestID: fcontext.RequestID(r.Context()),
				Code:      http.StatusBadRequest,
			}
		}
		minutes = n
	}

	return time.Now().Add(-time.Duration(minutes) * time.Minute), nil
}

type pairResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

func (api *HTTP) handlePair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr := remoteIP(r)

	if !api.pairing.Allow(addr) {
		zerolog.Ctx(ctx).Warn().Str("addr", addr).Msg("pairing throttled")
		api.serveError(ctx, w, r, model.ErrRateLimited)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		api.serveError(ctx, w, r, model.ServiceError{Message: "unable to read body", Code: http.StatusBadRequest})
		return
	}

	v, err := fastjson.ParseBytes(body)
	if err != nil {
		api.serveError(ctx, w, r, model.ServiceError{Message: "unable to unmarshal message", Code: http.StatusBadRequest})
		return
	}

	req := hub.PairRequest{
		TargetIP:   string(v.GetStringBytes("targetIp")),
		Port:       v.GetInt("port"),
		Name:       string(v.GetStringBytes("tankName")),
		Location:   string(v.GetStringBytes("location")),
		HardwareID: string(v.GetStringBytes("deviceId")),
		Height:     v.GetInt("height"),
		Capacity:   v.GetInt("capacity"),
		ServerURL:  "http://" + r.Host,
	}

	rec, err := api.hub.Pair(ctx, req)
	if err != nil {
		api.serveError(ctx, w, r, err)
		return
	}

	asJSON(ctx, w, pairResponse{Success: true, ID: rec.ID}, http.StatusOK)
}

// codeOf maps domain errors to response codes.
func codeOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidConfig), errors.Is(err, model.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (api *HTTP) serveError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	var logger = zerolog.Ctx(ctx)
	var rid = fcontext.RequestID(ctx)

	var responseError model.ServiceError
	if !errors.As(err, &responseError) {
		responseError = model.ServiceError{
			Message: err.Error(),
			Code:    codeOf(err),
		}
	}

	if responseError.Code == 0 {
		responseError.Code = http.StatusInternalServerError
	}

	if responseError.RequestID == "" {
		responseError.RequestID = rid
	}

	if responseError.Code >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("code", responseError.Code).Msg("captured error")
		api.notifier.CaptureRequest(r, err, responseError.Code == http.StatusInternalServerError)
	} else {
		logger.Debug().Err(err).Int("code", responseError.Code).Msg("request rejected")
	}

	asJSON(ctx, w, responseError, responseError.Code)
}

func asJSON(ctx context.Context, w http.ResponseWriter, obj interface{}, code int) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(obj)
	if err != nil {
		logger := zerolog.Ctx(ctx)
		logger.Error().Err(err).Msg("encoding json")
	}
}
