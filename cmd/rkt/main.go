package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	cl "racket/internal/cli"
	"racket/internal/config"
	"racket/internal/game"
	"racket/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "rkt",
		Short:        "Racket CLI game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "Racket API base URL")

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newJoinCmd(&apiBase),
		newStatusCmd(&apiBase),
		newCatalogCmd(&apiBase),
		newBuyCmd(&apiBase),
		newUpgradeCmd(&apiBase),
		newSellCmd(&apiBase),
		newClaimCmd(&apiBase),
		newEntitleCmd(&apiBase),
		newStatsCmd(&apiBase),
		newAuditCmd(&apiBase),
		newSyncCmd(&apiBase),
		newWatchCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// loadSession returns the saved session, refreshing the access token when it is about to expire.
func loadSession(ctx context.Context, client *cl.Client) (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return sess, fmt.Errorf("login required: %w", err)
	}
	if !sess.NeedsRefresh(time.Now()) {
		return sess, nil
	}
	fresh, err := client.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return sess, fmt.Errorf("session expired, run `rkt login`: %w", err)
	}
	sess = cl.SessionFrom(fresh, time.Now())
	if err := cl.SaveSession(sess); err != nil {
		return sess, err
	}
	return sess, nil
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Racket account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `rkt login`.")
				return nil
			}
			if err := cl.SaveSession(cl.SessionFrom(session, time.Now())); err != nil {
				return err
			}
			printSuccess("Signup complete. Run `rkt join` to open your ledger.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Racket",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.SessionFrom(session, time.Now())); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Open your player ledger and pay the entry fee",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			out, err := client.Join(ctx, sess.AccessToken, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Label:          "join",
					Method:         http.MethodPost,
					Path:           "/v1/players",
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("Ledger opened. Entry fee paid: %s", formatCoins(out.EntryFee)))
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show your slots and claimable earnings",
		Aliases: []string{"dash"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			view, err := client.Player(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderPlayer(view, time.Now())
			return nil
		},
	}
}

func newCatalogCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List business kinds, slot tiers and fees",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Catalog(ctx)
			if err != nil {
				return err
			}
			renderCatalog(out)
			return nil
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	var level uint8
	cmd := &cobra.Command{
		Use:   "buy <kind> [slot]",
		Short: "Buy a business, into the first free slot unless one is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := game.KindByName(args[0])
			if err != nil {
				return err
			}
			slot := -1
			if len(args) > 1 {
				if slot, err = parseSlot(args[1]); err != nil {
					return err
				}
			}
			if level > game.MaxUpgradeLevel {
				return fmt.Errorf("level must be between 0 and %d", game.MaxUpgradeLevel)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			body := cl.BuyBody(kind.String(), slot, level)
			out, err := client.Buy(ctx, sess.AccessToken, body, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Label:          "buy " + kind.String(),
					Method:         http.MethodPost,
					Path:           "/v1/businesses",
					Body:           body,
					IdempotencyKey: idem,
				})
			}
			renderBuy(out)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&level, "level", 0, "buy pre-upgraded to this level")
	return cmd
}

func newUpgradeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <slot>",
		Short: "Upgrade the business in a slot by one level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			out, err := client.Upgrade(ctx, sess.AccessToken, slot, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Label:          fmt.Sprintf("upgrade slot %d", slot),
					Method:         http.MethodPost,
					Path:           cl.UpgradePath(slot),
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("Slot %d upgraded to level %d for %s. Daily earnings now %s.",
				out.SlotIndex, out.Level, formatCoins(out.Cost), formatCoins(out.DailyEarnings)))
			return nil
		},
	}
}

func newSellCmd(apiBase *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "sell <slot>",
		Short: "Sell the business in a slot back to the treasury",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := promptConfirm(fmt.Sprintf("Sell the business in slot %d?", slot))
				if err != nil {
					return err
				}
				if !ok {
					printInfo("Cancelled.")
					return nil
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			out, err := client.Sell(ctx, sess.AccessToken, slot, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Label:          fmt.Sprintf("sell slot %d", slot),
					Method:         http.MethodPost,
					Path:           cl.SellPath(slot),
					IdempotencyKey: idem,
				})
			}
			renderSale(out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newClaimCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim accrued earnings across all slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			out, err := client.Claim(ctx, sess.AccessToken, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Label:          "claim",
					Method:         http.MethodPost,
					Path:           "/v1/claims",
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("Claimed %s (fee %s, gross %s).", formatCoins(out.Net), formatCoins(out.Fee), formatCoins(out.Gross)))
			printInfo("Next claim: " + formatUnix(out.NextClaimAt))
			return nil
		},
	}
}

func newEntitleCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "entitle",
		Short: "Buy continuous accrual for your ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			out, err := client.Entitle(ctx, sess.AccessToken, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Label:          "entitle",
					Method:         http.MethodPost,
					Path:           "/v1/entitlement",
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("Auto accrual unlocked for %s.", formatCoins(out.Price)))
			return nil
		},
	}
}

func newStatsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show global game statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			out, err := client.Stats(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderStats(out)
			return nil
		},
	}
}

func newAuditCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Run the ledger health checks on your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			out, err := client.Audit(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderAudit(out)
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cl.BaseDir()
			if err != nil {
				return err
			}
			queue := syncq.Default(dir)
			pending, err := queue.Load()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			client := newClient(apiBase)
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}
			results, err := queue.Drain(ctx, client.Replayer(sess.AccessToken))
			if err != nil {
				return err
			}
			return renderSync(results)
		},
	}
}

func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	if cl.IsAPIError(err) {
		return err
	}
	dir, dirErr := cl.BaseDir()
	if dirErr != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	cmd.QueuedAt = time.Now().UTC()
	if pushErr := syncq.Default(dir).Push(cmd); pushErr != nil {
		return fmt.Errorf("request failed and could not be queued (%v): %w", pushErr, err)
	}
	printWarn(fmt.Sprintf("API unreachable, queued %q. Run `rkt sync` when back online.", cmd.Label))
	return nil
}

func parseSlot(arg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || v < 0 || v >= game.SlotCount {
		return 0, fmt.Errorf("slot must be a number between 0 and %d", game.SlotCount-1)
	}
	return v, nil
}
