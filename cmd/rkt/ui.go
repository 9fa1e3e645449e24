package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	cl "racket/internal/cli"
	"racket/internal/coin"
	"racket/internal/game"
	"racket/internal/syncq"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo on a terminal and falls back to a plain line otherwise.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptConfirm(label string) (bool, error) {
	fmt.Printf("%s [y/N]: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func renderPlayer(v game.PlayerView, now time.Time) {
	accent.Println("\n== LEDGER ==")
	fmt.Printf("Owner:           %s\n", truncate(v.Owner.String(), 19))
	fmt.Printf("Auto accrual:    %s\n", yesNo(v.Entitled))
	fmt.Printf("Invested:        %s\n", formatCoins(v.TotalInvested))
	fmt.Printf("Upgrade spend:   %s\n", formatCoins(v.TotalUpgradeSpent))
	fmt.Printf("Slot spend:      %s\n", formatCoins(v.TotalSlotSpent))
	fmt.Printf("Earned:          %s\n", formatCoins(v.TotalEarned))
	fmt.Printf("Claimable:       %s\n", colorizeClaimable(v.Claimable, v.CanClaim))
	if !v.CanClaim && v.NextClaimAt > 0 {
		fmt.Printf("Next claim:      %s (%s)\n", formatUnix(v.NextClaimAt), until(now, v.NextClaimAt))
	}

	fmt.Println()
	accent.Println("Slots")
	fmt.Printf("%-4s %-10s %-20s %5s %12s %12s %12s\n", "IDX", "TIER", "BUSINESS", "LVL", "DAILY", "CLAIMABLE", "NEXT UP")
	for _, s := range v.Slots {
		fmt.Printf("%-4d %-10s ", s.Index, s.Tier)
		switch {
		case !s.Unlocked:
			fmt.Printf("%-20s\n", neutral.Sprint("locked"))
		case s.Business == nil:
			fmt.Printf("%-20s\n", "empty")
		default:
			b := s.Business
			nextUp := "max"
			if b.NextUpgradeCost != nil {
				nextUp = formatCoins(*b.NextUpgradeCost)
			}
			fmt.Printf("%-20s %5d %12s %12s %12s\n",
				truncate(b.Name, 20),
				b.UpgradeLevel,
				formatCoins(b.DailyEarnings),
				formatCoins(b.Claimable),
				nextUp,
			)
		}
	}
	fmt.Println()
}

func renderCatalog(c game.CatalogView) {
	accent.Println("\n== BUSINESSES ==")
	fmt.Printf("%-12s %-20s %12s %8s %12s %12s %12s\n", "KIND", "NAME", "COST", "RATE", "LVL 1", "LVL 2", "LVL 3")
	for _, k := range c.Kinds {
		fmt.Printf("%-12s %-20s %12s %7.2f%% %12s %12s %12s\n",
			k.Kind,
			truncate(k.Name, 20),
			formatCoins(k.BaseCost),
			float64(k.DailyRateBps)/100,
			formatCoins(k.UpgradeCosts[0]),
			formatCoins(k.UpgradeCosts[1]),
			formatCoins(k.UpgradeCosts[2]),
		)
	}

	fmt.Println()
	accent.Println("Premium slots")
	fmt.Printf("%-10s %12s %10s %14s\n", "TIER", "COST", "BONUS", "SELL DISCOUNT")
	for i, tier := range []string{"premium", "vip", "legendary"} {
		fmt.Printf("%-10s %12s %9.2f%% %13d%%\n", tier, formatCoins(c.PremiumSlotCosts[i]), float64(c.YieldBonusBps[i])/100, c.SellFeeDiscount[i])
	}

	fmt.Println()
	accent.Println("Fees")
	fmt.Printf("Entry fee:        %s\n", formatCoins(c.EntryFee))
	fmt.Printf("Auto accrual:     %s\n", formatCoins(c.EntitlementPrice))
	fmt.Printf("Basic slot fee:   %d%% of price\n", c.BasicSlotFeePct)
	fmt.Printf("Claim fee:        %d%%\n", c.ClaimFeePct)
	steps := make([]string, 0, len(c.SellFeeSchedule))
	for _, s := range c.SellFeeSchedule {
		steps = append(steps, fmt.Sprintf("%dd+ %d%%", s.MinDays, s.Percent))
	}
	fmt.Printf("Sell fee:         %s\n", strings.Join(steps, ", "))
	fmt.Println()
}

func renderBuy(out game.BuyBusinessResult) {
	printSuccess(fmt.Sprintf("Bought %s at level %d into slot %d.", out.Kind, out.Level, out.SlotIndex))
	fmt.Printf("Price:          %s\n", formatCoins(out.Price))
	if out.UpgradeSpend > 0 {
		fmt.Printf("Upgrades:       %s\n", formatCoins(out.UpgradeSpend))
	}
	if out.SlotFee > 0 {
		fmt.Printf("Slot fee:       %s\n", formatCoins(out.SlotFee))
	}
	fmt.Printf("Total charged:  %s\n", formatCoins(out.TotalCharged))
	fmt.Printf("Daily earnings: %s\n", formatCoins(out.DailyEarnings))
}

func renderSale(out game.SaleResult) {
	printSuccess(fmt.Sprintf("Sold %s from slot %d after %d days.", out.Kind, out.SlotIndex, out.DaysHeld))
	fmt.Printf("Basis:   %s\n", formatCoins(out.Basis))
	fmt.Printf("Fee:     %s (%d%%)\n", formatCoins(out.Fee), out.FeePct)
	fmt.Printf("Refund:  %s\n", formatCoins(out.Refund))
}

func renderStats(out cl.StatsResponse) {
	accent.Println("\n== GLOBAL STATS ==")
	fmt.Printf("Players:     %s\n", comma(fmt.Sprint(out.Stats.Players)))
	fmt.Printf("Businesses:  %s\n", comma(fmt.Sprint(out.Stats.Businesses)))
	fmt.Printf("Invested:    %s\n", formatCoins(out.Stats.Invested))
	fmt.Printf("Withdrawn:   %s\n", formatCoins(out.Stats.Withdrawn))
	fmt.Printf("Fees:        %s\n", formatCoins(out.Stats.FeesCollected))
	fmt.Printf("Treasury:    %s\n", formatCoins(out.TreasuryBalance))
	fmt.Println()
}

func renderAudit(r game.AuditReport) {
	if r.Healthy {
		printSuccess("Ledger healthy.")
	} else {
		printError("Ledger failed health checks.")
	}
	if r.PlayerErr != "" {
		printWarn("player: " + r.PlayerErr)
	}
	for _, e := range r.Entries {
		status := success.Sprint("ok")
		if e.Error != "" {
			status = danger.Sprint(e.Error)
		}
		fmt.Printf("slot %d %-12s %s\n", e.SlotIndex, e.Kind, status)
	}
}

func renderSync(results []syncq.Result) error {
	var replayed, applied, retry, rejected int
	for _, r := range results {
		switch r.Outcome {
		case syncq.Replayed:
			replayed++
		case syncq.AlreadyApplied:
			applied++
		case syncq.Retry:
			retry++
			printWarn(fmt.Sprintf("Will retry %s: %v", r.Command.Label, r.Err))
		case syncq.Rejected:
			rejected++
			printError(fmt.Sprintf("Dropped %s: %v", r.Command.Label, r.Err))
		}
	}
	printSuccess(syncSummary(replayed, applied, retry, rejected))
	return nil
}

func syncSummary(replayed, applied, retry, rejected int) string {
	return fmt.Sprintf("Sync complete: replayed=%d already_applied=%d remaining=%d dropped=%d", replayed, applied, retry, rejected)
}

func colorizeClaimable(units uint64, ready bool) string {
	text := formatCoins(units)
	switch {
	case units == 0:
		return neutral.Sprint(text)
	case ready:
		return success.Sprint(text)
	default:
		return warn.Sprint(text)
	}
}

// formatCoins renders base units with four decimals and a thousands separator.
func formatCoins(units uint64) string {
	text := coin.FormatFixed(units, 4)
	whole, frac, _ := strings.Cut(text, ".")
	return comma(whole) + "." + frac
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}

func until(now time.Time, ts int64) string {
	d := time.Unix(ts, 0).Sub(now).Round(time.Minute)
	if d <= 0 {
		return "now"
	}
	return "in " + strings.TrimSuffix(d.String(), "0s")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func comma(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
