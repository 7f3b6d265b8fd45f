package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/rilctl/internal/auth"
	"github.com/danmuck/rilctl/internal/config"
	"github.com/danmuck/rilctl/internal/logging"
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/ril"
	"github.com/danmuck/rilctl/internal/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML or YAML config file")
	socket := flag.String("socket", "", "daemon socket path (overrides config)")
	admin := flag.String("admin", "", "admin HTTP listen address (overrides config)")
	query := flag.Bool("query", false, "query IMEI and baseband version once connected")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.Component("rilctl")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}
	if *socket != "" {
		cfg.Client.Address = *socket
	}
	if *admin != "" {
		cfg.AdminAddr = *admin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *query, logger); err != nil {
		logger.Error().Err(err).Msg("rilctl exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, query bool, logger zerolog.Logger) error {
	client, err := ril.New(cfg.Client)
	if err != nil {
		return err
	}
	for _, code := range protocol.EventCodes() {
		client.Subscribe(code, func(ev ril.Event) {
			if ev.Err != nil {
				logger.Warn().Err(ev.Err).Str("event", protocol.EventName(ev.Code)).Msg("event")
				return
			}
			logger.Info().Str("event", protocol.EventName(ev.Code)).Interface("value", ev.Value).Msg("event")
		})
	}

	if query {
		var once sync.Once
		client.OnStateChange(func(s ril.ConnState) {
			if s != ril.Connected {
				return
			}
			once.Do(func() { go queryIdentity(ctx, client, logger) })
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	if cfg.AdminAddr != "" {
		var guard auth.Validator
		if cfg.AdminToken != "" {
			guard = auth.StaticToken{Token: cfg.AdminToken}
		}
		admin := server.New(cfg.AdminAddr, cfg.CorsOrigins, client, guard)
		g.Go(func() error {
			return admin.Serve(ctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func queryIdentity(ctx context.Context, client *ril.Client, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	imei, err := ril.CallAs[string](ctx, client, protocol.RequestGetIMEI, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("GET_IMEI failed")
	} else {
		logger.Info().Str("imei", imei).Msg("device identity")
	}

	version, err := ril.CallAs[string](ctx, client, protocol.RequestBasebandVersion, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("BASEBAND_VERSION failed")
		return
	}
	logger.Info().Str("baseband", version).Msg("baseband version")
}
