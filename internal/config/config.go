package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	ftime "github.com/ferux/tankhub/internal/time"
)

// Application settings.
type Application struct {
	Debug          bool           `json:"debug"`
	HTTP           HTTP           `json:"http"`
	Hub            Hub            `json:"hub"`
	Store          Store          `json:"store"`
	History        History        `json:"history"`
	Pairing        Pairing        `json:"pairing"`
	SentryDSN      string         `json:"sentry_dsn"`
	NotifyTelegram NotifyTelegram `json:"notify_telegram"`
	ServerName     string         `json:"server_name"`
}

type HTTP struct {
	Listen  string         `json:"listen"`
	Timeout ftime.Duration `json:"timeout"`
}

// Hub tunes the telemetry hub.
type Hub struct {
	// OfflineTimeout is the silence after which a device is offline.
	OfflineTimeout ftime.Duration `json:"offline_timeout"`
	SweepInterval  ftime.Duration `json:"sweep_interval"`
	// SignatureScheme is either "sha1" or "blake3".
	SignatureScheme string `json:"signature_scheme"`
	// StartupAttempts bounds retries of the initial reconciliation.
	StartupAttempts  int            `json:"startup_attempts"`
	ReconcileTimeout ftime.Duration `json:"reconcile_timeout"`
	// SkipOfflineSample disables the history sample written when a device
	// goes offline.
	SkipOfflineSample bool `json:"skip_offline_sample"`
	// OutboxSize is the number of frames buffered per connection.
	OutboxSize int `json:"outbox_size"`
	// MessageRate limits messages per second accepted from one connection.
	MessageRate  float64 `json:"message_rate"`
	MessageBurst int     `json:"message_burst"`
}

type Store struct {
	Path     string `json:"path"`
	PoolSize int    `json:"pool_size"`
}

type History struct {
	// DisableAPI hides history endpoints. Samples are recorded anyway.
	DisableAPI    bool           `json:"disable_api"`
	Interval      ftime.Duration `json:"interval"`
	Retention     ftime.Duration `json:"retention"`
	PruneInterval ftime.Duration `json:"prune_interval"`
	QueueSize     int            `json:"queue_size"`
}

type Pairing struct {
	// ServerURL is handed to devices as the address of this hub.
	ServerURL         string         `json:"server_url"`
	Timeout           ftime.Duration `json:"timeout"`
	RequestsPerMinute int            `json:"requests_per_minute"`
}

type NotifyTelegram struct {
	API    string `json:"api"`
	ChatID string `json:"chat_id"`
}

// Default returns settings used for every value missing in the file.
func Default() Application {
	return Application{
		HTTP: HTTP{
			Listen:  ":3000",
			Timeout: ftime.Duration(15 * time.Second),
		},
		Hub: Hub{
			OfflineTimeout:   ftime.Duration(15 * time.Second),
			SweepInterval:    ftime.Duration(5 * time.Second),
			SignatureScheme:  "sha1",
			StartupAttempts:  10,
			ReconcileTimeout: ftime.Duration(10 * time.Second),
			OutboxSize:       64,
			MessageRate:      10,
			MessageBurst:     20,
		},
		Store: Store{
			Path:     "tankhub.db",
			PoolSize: 4,
		},
		History: History{
			Interval:      ftime.Duration(10 * time.Minute),
			Retention:     ftime.Duration(7 * 24 * time.Hour),
			PruneInterval: ftime.Duration(time.Hour),
			QueueSize:     256,
		},
		Pairing: Pairing{
			Timeout:           ftime.Duration(10 * time.Second),
			RequestsPerMinute: 20,
		},
		ServerName: "tankhub",
	}
}

// Parse parses config from file. Comments are allowed in the file.
func Parse(path string) (Application, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return Application{}, err
	}

	return parse(fileBytes)
}

func parse(data []byte) (Application, error) {
	app := Default()

	err := json.Unmarshal(jsonc.ToJSON(data), &app)
	if err != nil {
		return Application{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	app.fill()

	return app, app.validate()
}

// fill restores defaults for values explicitly set to zero.
func (app *Application) fill() {
	def := Default()

	if app.HTTP.Listen == "" {
		app.HTTP.Listen = def.HTTP.Listen
	}

	if app.Hub.SignatureScheme == "" {
		app.Hub.SignatureScheme = def.Hub.SignatureScheme
	}

	if app.Hub.StartupAttempts <= 0 {
		app.Hub.StartupAttempts = def.Hub.StartupAttempts
	}

	if app.Hub.OutboxSize <= 0 {
		app.Hub.OutboxSize = def.Hub.OutboxSize
	}

	if app.Hub.MessageBurst <= 0 {
		app.Hub.MessageBurst = def.Hub.MessageBurst
	}

	if app.Store.Path == "" {
		app.Store.Path = def.Store.Path
	}

	if app.History.Retention <= 0 {
		app.History.Retention = def.History.Retention
	}

	if app.History.PruneInterval <= 0 {
		app.History.PruneInterval = def.History.PruneInterval
	}

	if app.Hub.ReconcileTimeout <= 0 {
		app.Hub.ReconcileTimeout = def.Hub.ReconcileTimeout
	}

	if app.History.QueueSize <= 0 {
		app.History.QueueSize = def.History.QueueSize
	}

	if app.Pairing.RequestsPerMinute <= 0 {
		app.Pairing.RequestsPerMinute = def.Pairing.RequestsPerMinute
	}
}

func (app Application) validate() error {
	if app.Hub.OfflineTimeout <= 0 || app.Hub.SweepInterval <= 0 {
		return fmt.Errorf("hub: offline_timeout and sweep_interval must be positive")
	}

	switch app.Hub.SignatureScheme {
	case "sha1", "blake3":
	default:
		return fmt.Errorf("hub: unknown signature_scheme %q", app.Hub.SignatureScheme)
	}

	return nil
}
