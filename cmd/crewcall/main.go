package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crewcall/crewcall/internal/auth"
	"github.com/crewcall/crewcall/internal/capture"
	"github.com/crewcall/crewcall/internal/config"
	"github.com/crewcall/crewcall/internal/discord"
	"github.com/crewcall/crewcall/internal/game"
	"github.com/crewcall/crewcall/internal/logging"
	"github.com/crewcall/crewcall/internal/observability"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "crewcall.toml", "path to config file")
	initConfig := flag.Bool("init", false, "write a starter config to the config path and exit")
	flag.Parse()

	logging.ConfigureRuntime()

	if *initConfig {
		if err := config.WriteTemplate(*configPath, false); err != nil {
			fmt.Fprintf(os.Stderr, "crewcall: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "crewcall: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := log.With().Str("app", "crewcall").Logger()
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := discord.NewSession(cfg.Token, game.RoleID(cfg.SpectatorRole), logger)
	if err != nil {
		return err
	}
	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close()

	// Unknown channels are a configuration error; refuse to start.
	for _, ch := range []string{cfg.LivingChannel, cfg.DeadChannel} {
		if err := session.VerifyChannel(game.ChannelID(ch)); err != nil {
			return err
		}
	}

	store := game.NewStore()
	owners, err := session.ResolveOwners(cfg.Owners)
	if err != nil {
		return err
	}
	store.SetOwners(owners)

	orch := game.NewOrchestrator(store, session, session, game.Settings{
		LivingChannel: game.ChannelID(cfg.LivingChannel),
		DeadChannel:   game.ChannelID(cfg.DeadChannel),
		DeafenMuted:   cfg.DeafenMuted,
	}, logger)

	handler := discord.NewHandler(store, orch, session, cfg.Prefix, cfg.StartDelay(), stop, logger)
	session.Bind(ctx, handler)
	logger.Info().Str("bot", string(session.BotID())).Msg("gateway connected")

	errCh := make(chan error, 1)

	var captureSrv *capture.Server
	if cfg.Capture.Enabled {
		connectCode := cfg.Capture.ConnectCode
		if connectCode == "" {
			connectCode = uuid.NewString()
			logger.Info().Str("connect_code", connectCode).Msg("generated capture connect code")
		}
		feed := capture.NewFeed()
		captureSrv = capture.NewServer(cfg.Capture.Addr, auth.StaticToken{Token: cfg.Capture.AuthToken}, connectCode, feed, logger)
		watcher := game.NewWatcher(store, orch, feed, cfg.SettleDelay(), logger)

		go func() {
			errCh <- captureSrv.Run()
		}()
		// A closed feed stops the watcher; chat-driven control stays up.
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("lifecycle watcher stopped")
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("background task failed")
		}
	}

	if captureSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := captureSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("capture shutdown failed")
		}
	}
	return nil
}
