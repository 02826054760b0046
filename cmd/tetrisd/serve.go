package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/red-tetris-backend/internal/config"
	"github.com/DoyleJ11/red-tetris-backend/internal/httpapi"
	"github.com/DoyleJ11/red-tetris-backend/internal/hub"
	"github.com/DoyleJ11/red-tetris-backend/internal/leaderboard"
	"github.com/DoyleJ11/red-tetris-backend/internal/logging"
	"github.com/DoyleJ11/red-tetris-backend/internal/ws"
)

func newServeCmd() *cobra.Command {
	cfg := &config.Server{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			config.BindEnv(cmd.Flags())
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())
	return cmd
}

func serve(parent context.Context, cfg *config.Server) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	store, err := leaderboard.Open(cfg.LeaderboardDriver, cfg.SQLitePath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	h := hub.New(hubCtx, hub.Options{
		Rules:           rules.Match(),
		DefaultCapacity: rules.DefaultCapacity,
		GraceDelay:      cfg.GraceDelay,
		Store:           store,
		Logger:          log.Named("hub"),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, log.Named("http"), ws.Options{ReadTimeout: cfg.ReadTimeout}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("leaderboard", cfg.LeaderboardDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Closing the hub closes every outbox, which ends the websocket handlers.
		stopHub()
		<-h.Done()
		return multierr.Combine(srv.Shutdown(shutdownCtx), h.Wait())
	})
	return g.Wait()
}
