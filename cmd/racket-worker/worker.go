package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"racket/internal/coin"
	"racket/internal/game"
)

// webhookExecutor is the part of *discordgo.Session the worker posts through.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type worker struct {
	svc          *game.Service
	log          *slog.Logger
	discord      webhookExecutor
	webhookID    string
	webhookToken string
	now          func() time.Time
}

// runCycle audits every ledger and posts a digest when a webhook is configured.
func (w *worker) runCycle(ctx context.Context) error {
	summary, err := w.svc.AuditAll(ctx)
	if err != nil {
		return fmt.Errorf("audit ledgers: %w", err)
	}
	stats, err := w.svc.GlobalStats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	w.log.Info("audit cycle complete",
		"checked", summary.Checked,
		"unhealthy", summary.Unhealthy,
		"players", stats.Players,
		"businesses", stats.Businesses,
		"treasury", stats.TreasuryBalance(),
	)
	if w.discord == nil {
		return nil
	}
	params := digestParams(summary, stats, w.now())
	if _, err := w.discord.WebhookExecute(w.webhookID, w.webhookToken, false, params); err != nil {
		return fmt.Errorf("post digest: %w", err)
	}
	return nil
}

func digestParams(summary game.AuditSummary, stats game.GlobalStats, at time.Time) *discordgo.WebhookParams {
	color := 0x2ecc71
	if summary.Unhealthy > 0 {
		color = 0xe74c3c
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Racket ledger digest",
		Color:     color,
		Timestamp: at.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Players", Value: fmt.Sprintf("%d", stats.Players), Inline: true},
			{Name: "Businesses", Value: fmt.Sprintf("%d", stats.Businesses), Inline: true},
			{Name: "Treasury", Value: coin.FormatFixed(stats.TreasuryBalance(), 4), Inline: true},
			{Name: "Invested", Value: coin.FormatFixed(stats.Invested, 4), Inline: true},
			{Name: "Withdrawn", Value: coin.FormatFixed(stats.Withdrawn, 4), Inline: true},
			{Name: "Fees", Value: coin.FormatFixed(stats.FeesCollected, 4), Inline: true},
			{Name: "Audit", Value: fmt.Sprintf("%d checked, %d unhealthy", summary.Checked, summary.Unhealthy)},
		},
	}
	if len(summary.Failures) > 0 {
		shown := summary.Failures
		if len(shown) > 5 {
			shown = shown[:5]
		}
		list := ""
		for _, owner := range shown {
			list += "`" + owner.String()[:16] + "…`\n"
		}
		if extra := len(summary.Failures) - len(shown); extra > 0 {
			list += fmt.Sprintf("and %d more", extra)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Unhealthy ledgers", Value: list})
	}
	return &discordgo.WebhookParams{
		Username: "racket-worker",
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
}
