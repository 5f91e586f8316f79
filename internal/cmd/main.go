package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ferux/tankhub"
	"github.com/ferux/tankhub/internal/api"
	"github.com/ferux/tankhub/internal/config"
	"github.com/ferux/tankhub/internal/hub"
	"github.com/ferux/tankhub/internal/pairing"
	"github.com/ferux/tankhub/internal/report"
	"github.com/ferux/tankhub/internal/repo"
	"github.com/ferux/tankhub/internal/telegram"
	"github.com/ferux/tankhub/internal/telemetry"
)

func main() {
	path := pflag.StringP("config", "c", "./config.json", "path to config")
	showRevision := pflag.Bool("revision", false, "show version of the application")

	pflag.Parse()

	if *showRevision {
		fmt.Println(tankhub.Revision)
		return
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg, err := config.Parse(*path)
	if err != nil {
		logger.
			Fatal().
			Err(err).
			Str("revision", tankhub.Revision).
			Str("branch", tankhub.Branch).
			Str("env", tankhub.Env).
			Msg("parsing config file")
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger = logger.Level(level)

	logger.
		Debug().
		Interface("config", cfg).
		Str("rev", tankhub.Revision).
		Str("branch", tankhub.Branch).
		Msg("starting application")

	reporter, err := report.New(report.Options{
		DSN:         cfg.SentryDSN,
		Release:     tankhub.Revision,
		Environment: tankhub.Env,
		ServerName:  cfg.ServerName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("can't create sentry client")
	}

	store, err := repo.Open(cfg.Store, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("can't open store")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	defer cancel()

	tgclient := telegram.New()
	var tgnotifier *telegram.Notifier
	var notifier telemetry.Notifier
	if cfg.NotifyTelegram.API != "" && cfg.NotifyTelegram.ChatID != "" {
		tgnotifier = telegram.NewNotifier(tgclient, cfg.NotifyTelegram.API, cfg.NotifyTelegram.ChatID, logger)
		notifier = tgnotifier
		go tgnotifier.Run(ctx)
	}

	th, err := hub.New(cfg, hub.Deps{
		Store:    store,
		History:  store,
		Handoff:  pairing.New(cfg.Pairing.Timeout.Std(), logger),
		Reporter: reporter,
		Notifier: notifier,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("can't create hub")
	}

	if err = th.Start(ctx); err != nil {
		reporter.Capture(ctx, err, nil)
		reporter.Flush(5 * time.Second)
		logger.Fatal().Err(err).Msg("can't load fleet")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		th.Run(ctx)
	}()

	server := api.NewHTTP(cfg, th, reporter, logger)
	server.Serve()

	if tgnotifier != nil {
		tgnotifier.Send(fmt.Sprintf("tankhub branch=%s env=%s revision=%s", tankhub.Branch, tankhub.Env, tankhub.Revision))
	}

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-s

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*15)
	defer shutdownCancel()

	if tgnotifier != nil {
		errNotify := tgclient.SendMessageViaHTTP(shutdownCtx, cfg.NotifyTelegram.API, cfg.NotifyTelegram.ChatID, "shutting down")
		if errNotify != nil {
			logger.Error().Err(errNotify).Msg("error notifying via tg")
		}
	}

	if errShut := server.Shutdown(shutdownCtx); errShut != nil {
		logger.Error().Err(errShut).Msg("error shutting down server")
	}

	cancel()
	<-done

	if errClose := store.Close(); errClose != nil {
		logger.Error().Err(errClose).Msg("error closing store")
	}

	reporter.Flush(5 * time.Second)
}
