package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ferux/tankhub/internal/fcontext"
	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/wire"
)

const (
	writeWait  = time.Second * 10
	pongWait   = time.Second * 30
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: time.Second * 5,
	ReadBufferSize:   4 << 10, // 4 KiB
	WriteBufferSize:  4 << 10, // 4 KiB
	CheckOrigin:      func(*http.Request) bool { return true },
}

// wsConnection is a websocket session. Frames are queued into outbox and
// written by writeLoop, so Send never blocks the caller.
type wsConnection struct {
	id     string
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}

	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, outboxSize int) *wsConnection {
	if outboxSize <= 0 {
		outboxSize = 1
	}

	return &wsConnection{
		id:     uuid.New(),
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

func (c *wsConnection) ID() string { return c.id }

func (c *wsConnection) Send(frame []byte) error {
	select {
	case <-c.done:
		return model.ErrClosed
	default:
	}

	select {
	case c.outbox <- frame:
		return nil
	default:
		return model.ErrSlowConsumer
	}
}

// Close terminates the connection. A read in progress fails immediately.
func (c *wsConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})

	return err
}

func (c *wsConnection) writeLoop(logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug().Err(err).Msg("unable to write frame")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func (api *HTTP) accept(w http.ResponseWriter, r *http.Request) (*wsConnection, bool) {
	ctx := r.Context()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied with an error.
		zerolog.Ctx(ctx).Debug().Err(err).Msg("unable to upgrade to websockets")
		return nil, false
	}

	conn.SetReadLimit(wire.MaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return newConnection(conn, api.cfg.Hub.OutboxSize), true
}

func (api *HTTP) messageLimiter() *rate.Limiter {
	limit := rate.Limit(api.cfg.Hub.MessageRate)
	if limit <= 0 {
		limit = rate.Inf
	}

	return rate.NewLimiter(limit, api.cfg.Hub.MessageBurst)
}

// handleDeviceWS serves a device session. The first accepted message must
// be identify; anything else untrusted is dropped without a reply.
func (api *HTTP) handleDeviceWS(w http.ResponseWriter, r *http.Request) {
	c, ok := api.accept(w, r)
	if !ok {
		return
	}

	ctx := fcontext.WithSessionID(r.Context(), c.ID())
	logger := zerolog.Ctx(ctx).With().Str("session", c.ID()).Str("role", "device").Logger()
	ctx = logger.WithContext(ctx)
	addr := remoteIP(r)

	go c.writeLoop(logger)
	defer func() {
		api.hub.Disconnect(c)
		_ = c.Close()
		logger.Debug().Msg("device session closed")
	}()

	throttle := api.messageLimiter()
	var bound string

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !throttle.Allow() {
			logger.Debug().Msg("message dropped by rate limit")
			continue
		}

		var msg wire.DeviceMessage
		switch typ {
		case websocket.TextMessage:
			msg, err = wire.ParseDeviceJSON(data)
		case websocket.BinaryMessage:
			msg, err = wire.ParseDeviceCBOR(data)
		}
		if err != nil {
			logger.Debug().Err(err).Msg("malformed message dropped")
			continue
		}

		switch msg.Type {
		case wire.TypeIdentify:
			if !api.hub.Identify(ctx, c, msg.Identify.Secret, addr) {
				return
			}

			bound = msg.Identify.Secret
		case wire.TypeTelemetry:
			err = api.hub.Telemetry(ctx, bound, msg.Telemetry)
			if err != nil {
				logger.Debug().Err(err).Msg("telemetry dropped")
			}
		}
	}
}

// handleDashboardWS serves an observer. Observers receive the fleet
// snapshot first and may send configuration updates.
func (api *HTTP) handleDashboardWS(w http.ResponseWriter, r *http.Request) {
	c, ok := api.accept(w, r)
	if !ok {
		return
	}

	ctx := fcontext.WithSessionID(r.Context(), c.ID())
	logger := zerolog.Ctx(ctx).With().Str("session", c.ID()).Str("role", "observer").Logger()
	ctx = logger.WithContext(ctx)

	go c.writeLoop(logger)
	defer func() {
		api.hub.LeaveObserver(c)
		_ = c.Close()
		logger.Debug().Msg("observer session closed")
	}()

	if err := api.hub.JoinObserver(ctx, c); err != nil {
		logger.Warn().Err(err).Msg("unable to send snapshot")
		return
	}

	throttle := api.messageLimiter()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !throttle.Allow() {
			continue
		}

		update, err := wire.ParseObserver(data)
		if err != nil {
			logger.Debug().Err(err).Msg("malformed message dropped")
			continue
		}

		api.updateFromObserver(ctx, update)
	}
}

func (api *HTTP) updateFromObserver(ctx context.Context, update wire.ConfigUpdate) {
	logger := zerolog.Ctx(ctx)

	_, err := api.hub.UpdateConfig(ctx, update.ID, update.Patch)
	switch {
	case err == nil:
		logger.Info().Str("id", update.ID).Msg("configuration updated by observer")
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrInvalidConfig):
		logger.Debug().Err(err).Str("id", update.ID).Msg("configuration update rejected")
	default:
		logger.Error().Err(err).Str("id", update.ID).Msg("unable to update configuration")
		api.notifier.Capture(ctx, err, map[string]interface{}{"id": update.ID})
	}
}
