package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	store Store
	rules Rules
	log   *slog.Logger
	now   func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now as the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, rules Rules, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store: store,
		rules: rules,
		log:   logger,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Rules() Rules {
	return s.rules
}

func (s *Service) Catalog() CatalogView {
	return s.rules.Catalog()
}

func (s *Service) CreatePlayer(ctx context.Context, in CreatePlayerInput) (CreatePlayerResult, error) {
	var out CreatePlayerResult
	if in.Owner.IsZero() {
		return out, fmt.Errorf("owner is required")
	}
	at := s.now().UTC()
	err := s.runTx(ctx, "create_player", func(tx Tx) error {
		out = CreatePlayerResult{Owner: in.Owner}
		if err := tx.ClaimIdempotency(ctx, in.Owner, in.IdempotencyKey, "create_player"); err != nil {
			return err
		}
		p := NewPlayer(in.Owner, at.Unix())
		p.MarkEntryPaid()
		if err := tx.InsertPlayer(ctx, p); err != nil {
			return err
		}
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}
		ts := newTransferSet(in.Owner, at)
		ts.add(AccountPlayer, AccountFees, s.rules.EntryFee, "entry_fee")
		out.EntryFee = s.rules.EntryFee
		return s.settle(ctx, tx, nil, ts, stats, StatsDelta{Players: 1, FeesCollected: s.rules.EntryFee}, at)
	})
	if err != nil {
		return CreatePlayerResult{}, err
	}
	s.log.Info("player created", "owner", in.Owner.String(), "entry_fee", out.EntryFee)
	return out, nil
}

func (s *Service) BuyBusiness(ctx context.Context, in BuyBusinessInput) (BuyBusinessResult, error) {
	var out BuyBusinessResult
	if !in.Kind.Valid() {
		return out, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(in.Kind))
	}
	if in.Level > MaxUpgradeLevel {
		return out, fmt.Errorf("%w: %d", ErrInvalidLevel, in.Level)
	}
	price := in.Kind.BaseCost()
	costs, err := UpgradeSchedule(price)
	if err != nil {
		return out, err
	}
	at := s.now().UTC()
	entry, err := NewBusinessAtLevel(in.Kind, price, in.Level, costs, at.Unix())
	if err != nil {
		return out, err
	}

	err = s.runTx(ctx, "buy_business", func(tx Tx) error {
		out = BuyBusinessResult{}
		if err := tx.ClaimIdempotency(ctx, in.Owner, in.IdempotencyKey, "buy_business"); err != nil {
			return err
		}
		p, err := tx.LockPlayer(ctx, in.Owner)
		if err != nil {
			return err
		}
		idx := in.SlotIndex
		if idx < 0 {
			free, ok := p.FindFreeSlot()
			if !ok {
				return ErrNoFreeSlot
			}
			idx = free
		}
		slotFee, err := p.Acquire(s.rules, idx, entry, at.Unix())
		if err != nil {
			return err
		}
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}

		ts := newTransferSet(in.Owner, at)
		ts.add(AccountPlayer, AccountTreasury, entry.TotalInvested(), "business_purchase")
		ts.add(AccountPlayer, AccountFees, slotFee, "slot_fee")

		out = BuyBusinessResult{
			SlotIndex:     idx,
			Kind:          in.Kind.String(),
			Level:         entry.UpgradeLevel(),
			Price:         price,
			UpgradeSpend:  entry.TotalInvested() - price,
			SlotFee:       slotFee,
			TotalCharged:  saturatingAdd(entry.TotalInvested(), slotFee),
			DailyEarnings: p.slots[idx].AppliedEarnings(s.rules, entry.DailyEarnings()),
		}
		return s.settle(ctx, tx, p, ts, stats, StatsDelta{
			Businesses:    1,
			Invested:      entry.TotalInvested(),
			FeesCollected: slotFee,
		}, at)
	})
	if err != nil {
		return BuyBusinessResult{}, err
	}
	s.log.Info("business purchased",
		"owner", in.Owner.String(),
		"kind", out.Kind,
		"slot", out.SlotIndex,
		"level", out.Level,
		"charged", out.TotalCharged,
	)
	return out, nil
}

func (s *Service) UpgradeBusiness(ctx context.Context, in SlotActionInput) (UpgradeResult, error) {
	var out UpgradeResult
	at := s.now().UTC()
	err := s.runTx(ctx, "upgrade_business", func(tx Tx) error {
		out = UpgradeResult{}
		if err := tx.ClaimIdempotency(ctx, in.Owner, in.IdempotencyKey, "upgrade_business"); err != nil {
			return err
		}
		p, err := tx.LockPlayer(ctx, in.Owner)
		if err != nil {
			return err
		}
		if err := checkIndex(in.SlotIndex); err != nil {
			return err
		}
		current, ok := p.Occupant(in.SlotIndex)
		if !ok {
			return ErrSlotEmpty
		}
		cost, ok := current.NextUpgradeCost()
		if !ok {
			return fmt.Errorf("%w: already at level %d", ErrInvalidLevel, current.UpgradeLevel())
		}
		next, err := current.Upgraded(cost)
		if err != nil {
			return err
		}
		if err := p.UpgradeInSlot(in.SlotIndex, cost, next); err != nil {
			return err
		}
		p.RecordInvestment(cost, at.Unix())
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}

		ts := newTransferSet(in.Owner, at)
		ts.add(AccountPlayer, AccountTreasury, cost, "business_upgrade")

		out = UpgradeResult{
			SlotIndex:     in.SlotIndex,
			Level:         next.UpgradeLevel(),
			Cost:          cost,
			TotalInvested: next.TotalInvested(),
			DailyEarnings: p.slots[in.SlotIndex].AppliedEarnings(s.rules, next.DailyEarnings()),
		}
		return s.settle(ctx, tx, p, ts, stats, StatsDelta{Invested: cost}, at)
	})
	if err != nil {
		return UpgradeResult{}, err
	}
	s.log.Info("business upgraded", "owner", in.Owner.String(), "slot", out.SlotIndex, "level", out.Level, "cost", out.Cost)
	return out, nil
}

func (s *Service) SellBusiness(ctx context.Context, in SlotActionInput) (SaleResult, error) {
	var out SaleResult
	at := s.now().UTC()
	err := s.runTx(ctx, "sell_business", func(tx Tx) error {
		out = SaleResult{}
		if err := tx.ClaimIdempotency(ctx, in.Owner, in.IdempotencyKey, "sell_business"); err != nil {
			return err
		}
		p, err := tx.LockPlayer(ctx, in.Owner)
		if err != nil {
			return err
		}
		entry, discount, err := p.SellFromSlot(s.rules, in.SlotIndex)
		if err != nil {
			return err
		}
		settlement := s.rules.SaleRefund(entry, discount, at.Unix())
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}
		if stats.TreasuryBalance() < settlement.Basis {
			return ErrTreasuryInsufficient
		}

		ts := newTransferSet(in.Owner, at)
		ts.add(AccountTreasury, AccountPlayer, settlement.Refund, "business_sale")
		ts.add(AccountTreasury, AccountFees, settlement.Fee, "sale_fee")

		out = SaleResult{SlotIndex: in.SlotIndex, Kind: entry.Kind().String(), SaleSettlement: settlement}
		return s.settle(ctx, tx, p, ts, stats, StatsDelta{
			Businesses:    -1,
			Withdrawn:     settlement.Basis,
			FeesCollected: settlement.Fee,
		}, at)
	})
	if err != nil {
		return SaleResult{}, err
	}
	s.log.Info("business sold", "owner", in.Owner.String(), "slot", out.SlotIndex, "refund", out.Refund, "fee", out.Fee)
	return out, nil
}

func (s *Service) Claim(ctx context.Context, in OwnerInput) (ClaimResult, error) {
	var out ClaimResult
	at := s.now().UTC()
	err := s.runTx(ctx, "claim", func(tx Tx) error {
		out = ClaimResult{}
		if err := tx.ClaimIdempotency(ctx, in.Owner, in.IdempotencyKey, "claim"); err != nil {
			return err
		}
		p, err := tx.LockPlayer(ctx, in.Owner)
		if err != nil {
			return err
		}
		gross, err := p.Claim(s.rules, at.Unix())
		if err != nil {
			return err
		}
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}
		if stats.TreasuryBalance() < gross {
			return ErrTreasuryInsufficient
		}
		settlement := SplitClaim(gross)

		ts := newTransferSet(in.Owner, at)
		ts.add(AccountTreasury, AccountPlayer, settlement.Net, "claim")
		ts.add(AccountTreasury, AccountFees, settlement.Fee, "claim_fee")

		out = ClaimResult{
			ClaimSettlement: settlement,
			ClaimedAt:       at.Unix(),
			NextClaimAt:     p.NextClaimAt(at.Unix()),
		}
		return s.settle(ctx, tx, p, ts, stats, StatsDelta{Withdrawn: gross, FeesCollected: settlement.Fee}, at)
	})
	if err != nil {
		return ClaimResult{}, err
	}
	s.log.Info("earnings claimed", "owner", in.Owner.String(), "gross", out.Gross, "fee", out.Fee, "net", out.Net)
	return out, nil
}

func (s *Service) PurchaseEntitlement(ctx context.Context, in OwnerInput) (EntitlementResult, error) {
	out := EntitlementResult{Price: s.rules.EntitlementPrice}
	at := s.now().UTC()
	err := s.runTx(ctx, "purchase_entitlement", func(tx Tx) error {
		if err := tx.ClaimIdempotency(ctx, in.Owner, in.IdempotencyKey, "purchase_entitlement"); err != nil {
			return err
		}
		p, err := tx.LockPlayer(ctx, in.Owner)
		if err != nil {
			return err
		}
		if err := p.PurchaseEntitlement(); err != nil {
			return err
		}
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}
		ts := newTransferSet(in.Owner, at)
		ts.add(AccountPlayer, AccountTreasury, s.rules.EntitlementPrice, "auto_accrual")
		return s.settle(ctx, tx, p, ts, stats, StatsDelta{Invested: s.rules.EntitlementPrice}, at)
	})
	if err != nil {
		return EntitlementResult{}, err
	}
	s.log.Info("auto-accrual purchased", "owner", in.Owner.String(), "price", out.Price)
	return out, nil
}

func (s *Service) Snapshot(ctx context.Context, owner Owner) (PlayerView, error) {
	p, err := s.store.LoadPlayer(ctx, owner)
	if err != nil {
		return PlayerView{}, err
	}
	return p.Snapshot(s.rules, s.now().Unix()), nil
}

// Audit runs the ledger health checks for one owner.
func (s *Service) Audit(ctx context.Context, owner Owner) (AuditReport, error) {
	p, err := s.store.LoadPlayer(ctx, owner)
	if err != nil {
		return AuditReport{}, err
	}
	now := s.now().Unix()
	out := AuditReport{Owner: owner, Healthy: true, Entries: []EntryAudit{}}
	if err := p.HealthCheck(now); err != nil {
		out.Healthy = false
		out.PlayerErr = err.Error()
	}
	for i := range p.slots {
		b, ok := p.slots[i].Occupant()
		if !ok {
			continue
		}
		entry := EntryAudit{SlotIndex: i, Kind: b.Kind().String()}
		if err := b.HealthCheck(now); err != nil {
			out.Healthy = false
			entry.Error = err.Error()
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

// AuditAll pages through every ledger and counts the unhealthy ones.
func (s *Service) AuditAll(ctx context.Context) (AuditSummary, error) {
	const pageSize = 200
	var out AuditSummary
	var after Owner
	for {
		owners, err := s.store.ListOwners(ctx, after, pageSize)
		if err != nil {
			return out, err
		}
		for _, owner := range owners {
			report, err := s.Audit(ctx, owner)
			if err != nil {
				return out, fmt.Errorf("audit %s: %w", owner, err)
			}
			out.Checked++
			if !report.Healthy {
				out.Unhealthy++
				out.Failures = append(out.Failures, owner)
				s.log.Warn("ledger audit failed", "owner", owner.String(), "player_error", report.PlayerErr)
			}
		}
		if len(owners) < pageSize {
			return out, nil
		}
		after = owners[len(owners)-1]
	}
}

func (s *Service) GlobalStats(ctx context.Context) (GlobalStats, error) {
	return s.store.GlobalStats(ctx)
}

func (s *Service) runTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.store.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrSerialization) {
			return err
		}
		s.log.Debug("transaction conflict", "op", op, "attempt", attempt+1)
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func (s *Service) settle(ctx context.Context, tx Tx, p *Player, ts *transferSet, stats GlobalStats, delta StatsDelta, at time.Time) error {
	if p != nil {
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
	}
	if len(ts.items) > 0 {
		if err := tx.AppendTransfers(ctx, ts.items); err != nil {
			return err
		}
	}
	return tx.SaveStats(ctx, stats.Apply(delta, at))
}

type transferSet struct {
	group uuid.UUID
	owner Owner
	at    time.Time
	items []Transfer
}

func newTransferSet(owner Owner, at time.Time) *transferSet {
	return &transferSet{group: uuid.New(), owner: owner, at: at}
}

func (t *transferSet) add(from, to Account, amount uint64, reason string) {
	if amount == 0 {
		return
	}
	t.items = append(t.items, Transfer{
		GroupID: t.group,
		Owner:   t.owner,
		From:    from,
		To:      to,
		Amount:  amount,
		Reason:  reason,
		At:      t.at,
	})
}

// NormalizeIdempotencyKey trims key and rejects empty keys.
func NormalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("idempotency key is required")
	}
	return key, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
