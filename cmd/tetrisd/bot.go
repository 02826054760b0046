package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/red-tetris-backend/internal/bot"
	"github.com/DoyleJ11/red-tetris-backend/internal/config"
	"github.com/DoyleJ11/red-tetris-backend/internal/logging"
)

func newBotCmd() *cobra.Command {
	cfg := &config.Bot{}
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Join a room and play with the built-in autopilot",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			config.BindEnv(cmd.Flags())
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())
	return cmd
}

func runBot(parent context.Context, cfg *config.Bot) error {
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

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := bot.New(bot.Config{
		URL:        cfg.URL,
		Room:       cfg.Room,
		Name:       cfg.Name,
		MaxPlayers: cfg.MaxPlayers,
		StartAt:    cfg.StartAt,
		Think:      cfg.Think,
		Seed:       cfg.Seed,
		Timing:     rules.Timing(),
	}, log)

	log.Info("bot starting", zap.String("url", cfg.URL), zap.String("room", cfg.Room), zap.String("name", cfg.Name))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
