// Package report sends errors to Sentry.
package report

import (
	"context"
	"net/http"
	"reflect"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ferux/tankhub/internal/fcontext"
)

// Reporter captures errors worth a human look.
type Reporter interface {
	// Capture reports a background failure.
	Capture(ctx context.Context, err error, data map[string]interface{})
	// CaptureRequest reports a failed HTTP request. Fatal marks server
	// side failures.
	CaptureRequest(r *http.Request, err error, fatal bool)
	Flush(timeout time.Duration) bool
}

// Options of the Sentry client.
type Options struct {
	DSN         string
	Release     string
	Environment string
	ServerName  string
}

// New returns a Sentry reporter, or a no-op one when dsn is empty.
func New(opts Options) (Reporter, error) {
	if opts.DSN == "" {
		return Noop{}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Release:     opts.Release,
		Environment: opts.Environment,
		ServerName:  opts.ServerName,
	})
	if err != nil {
		return nil, err
	}

	return &Sentry{client: client, env: opts.Environment}, nil
}

type Sentry struct {
	client *sentry.Client
	env    string
}

func (s *Sentry) Capture(ctx context.Context, err error, data map[string]interface{}) {
	scope := sentry.NewScope()
	if rid := fcontext.RequestID(ctx); rid != "" {
		scope.SetTag("request_id", rid)
	}

	if sid := fcontext.SessionID(ctx); sid != "" {
		scope.SetTag("session_id", sid)
	}

	s.client.CaptureException(err, &sentry.EventHint{Data: data}, scope)
}

func (s *Sentry) CaptureRequest(r *http.Request, err error, fatal bool) {
	level := sentry.LevelError
	if fatal {
		level = sentry.LevelFatal
	}

	event := sentry.NewEvent()
	event.Exception = []sentry.Exception{{
		Type:       reflect.TypeOf(err).String(),
		Value:      err.Error(),
		Stacktrace: sentry.NewStacktrace(),
	}}
	event.Message = err.Error()
	event.Environment = s.env
	event.Level = level
	event.Request = sentry.NewRequest(r)

	if rid := fcontext.RequestID(r.Context()); rid != "" {
		event.Tags["request_id"] = rid
	}

	s.client.CaptureEvent(event, &sentry.EventHint{
		OriginalException: err,
		Request:           r,
	}, sentry.NewScope())
}

func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.client.Flush(timeout)
}

// Noop drops everything.
type Noop struct{}

func (Noop) Capture(context.Context, error, map[string]interface{}) {}

func (Noop) CaptureRequest(*http.Request, error, bool) {}

func (Noop) Flush(time.Duration) bool { return true }
