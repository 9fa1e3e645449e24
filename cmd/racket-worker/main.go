package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"racket/internal/config"
	"racket/internal/game"
	"racket/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	rules, err := cfg.Rules.Apply(game.DefaultRules())
	if err != nil {
		slog.Error("load rules", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	st, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("storage open failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	w := &worker{
		svc:          game.NewService(st, rules, logger),
		log:          logger,
		webhookID:    cfg.DiscordWebhookID,
		webhookToken: cfg.DiscordWebhookToken,
		now:          time.Now,
	}
	if cfg.DiscordWebhookID != "" {
		// Webhook execution is authorised by the webhook token, not a bot token.
		session, err := discordgo.New("")
		if err != nil {
			logger.Error("discord session failed", "err", err)
			os.Exit(1)
		}
		w.discord = session
	}

	if cfg.RunOnce {
		if err := w.runCycle(ctx); err != nil {
			logger.Error("audit cycle failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.AuditEvery)
	defer ticker.Stop()

	logger.Info("worker started", "audit_every", cfg.AuditEvery.String(), "digest", w.discord != nil)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := w.runCycle(ctx); err != nil {
				logger.Error("audit cycle failed", "err", err)
			}
		}
	}
}
