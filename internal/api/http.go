package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/config"
	"github.com/ferux/tankhub/internal/hub"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/pubsub"
	"github.com/ferux/tankhub/internal/report"
	"github.com/ferux/tankhub/internal/wire"
)

const MaxHeaderBytes = 256 * (1 << 10) // 256 KiB

// Service is the hub as seen by the transport.
type Service interface {
	Identify(ctx context.Context, session pubsub.Subscriber, secret, remoteIP string) bool
	Telemetry(ctx context.Context, boundSecret string, msg wire.Telemetry) error
	Disconnect(session pubsub.Subscriber)
	JoinObserver(ctx context.Context, sub pubsub.Subscriber) error
	LeaveObserver(sub pubsub.Subscriber)

	UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (model.PublicView, error)
	Pair(ctx context.Context, req hub.PairRequest) (model.DeviceRecord, error)
	Decommission(ctx context.Context, id string) (hub.DecommissionResult, error)
	Devices(ctx context.Context) ([]model.DeviceRecord, error)
	Live() []model.PublicView
	History(ctx context.Context, id string, since time.Time) ([]model.HistorySample, error)
	FleetHistory(ctx context.Context, since time.Time) ([]model.HistorySample, error)
	Stats() hub.Stats
}

type HTTP struct {
	srv *http.Server

	hub      Service
	cfg      config.Application
	notifier report.Reporter
	pairing  *limiter
	logger   zerolog.Logger

	bootTime     time.Time
	requestCount int64
}

// NewHTTP prepares new http service
func NewHTTP(cfg config.Application, service Service, notifier report.Reporter, logger zerolog.Logger) *HTTP {
	to := cfg.HTTP.Timeout.Std()
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		ReadTimeout:       to,
		ReadHeaderTimeout: to,
		WriteTimeout:      to,
		IdleTimeout:       to,
		MaxHeaderBytes:    MaxHeaderBytes,
	}

	if notifier == nil {
		notifier = report.Noop{}
	}

	api := &HTTP{
		srv:      srv,
		hub:      service,
		cfg:      cfg,
		notifier: notifier,
		pairing:  newLimiter(cfg.Pairing.RequestsPerMinute, time.Minute),
		logger:   logger.With().Str("pkg", "api").Logger(),
		bootTime: time.Now(),
	}
	api.setupRoutes()

	return api
}

// Handler returns the root handler.
func (api *HTTP) Handler() http.Handler {
	return api.srv.Handler
}

// Serve connections
func (api *HTTP) Serve() {
	go func() {
		api.logger.Info().Str("listen", api.srv.Addr).Msg("serving http")
		err := api.srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			api.logger.Error().Err(err).Msg("interrupted")
		}
	}()
}

// Shutdown the server
func (api *HTTP) Shutdown(ctx context.Context) error {
	return api.srv.Shutdown(ctx)
}

func remoteIP(r *http.Request) string {
	addr := r.Header.Get("X-Real-IP")
	if len(addr) == 0 {
		addr = r.Header.Get("X-Forwarded-For")
		if i := strings.IndexByte(addr, ','); i >= 0 {
			addr = addr[:i]
		}
	}

	if len(addr) == 0 {
		addr, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	return strings.TrimSpace(addr)
}
