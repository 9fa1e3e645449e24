package game

import "time"

type CreatePlayerInput struct {
	Owner          Owner
	IdempotencyKey string
}

type BuyBusinessInput struct {
	Owner          Owner
	Kind           BusinessKind
	SlotIndex      int
	Level          uint8
	IdempotencyKey string
}

type SlotActionInput struct {
	Owner          Owner
	SlotIndex      int
	IdempotencyKey string
}

type OwnerInput struct {
	Owner          Owner
	IdempotencyKey string
}

type CreatePlayerResult struct {
	Owner    Owner  `json:"owner"`
	EntryFee uint64 `json:"entry_fee_units"`
}

type BuyBusinessResult struct {
	SlotIndex     int    `json:"slot_index"`
	Kind          string `json:"kind"`
	Level         uint8  `json:"level"`
	Price         uint64 `json:"price_units"`
	UpgradeSpend  uint64 `json:"upgrade_spend_units"`
	SlotFee       uint64 `json:"slot_fee_units"`
	TotalCharged  uint64 `json:"total_charged_units"`
	DailyEarnings uint64 `json:"daily_earnings_units"`
}

type UpgradeResult struct {
	SlotIndex     int    `json:"slot_index"`
	Level         uint8  `json:"level"`
	Cost          uint64 `json:"cost_units"`
	TotalInvested uint64 `json:"total_invested_units"`
	DailyEarnings uint64 `json:"daily_earnings_units"`
}

type SaleResult struct {
	SlotIndex int    `json:"slot_index"`
	Kind      string `json:"kind"`
	SaleSettlement
}

type ClaimResult struct {
	ClaimSettlement
	ClaimedAt   int64 `json:"claimed_at"`
	NextClaimAt int64 `json:"next_claim_at"`
}

type EntitlementResult struct {
	Price uint64 `json:"price_units"`
}

type PlayerView struct {
	Owner             Owner      `json:"owner"`
	Entitled          bool       `json:"auto_accrual"`
	EntryPaid         bool       `json:"entry_paid"`
	TotalInvested     uint64     `json:"total_invested_units"`
	TotalUpgradeSpent uint64     `json:"total_upgrade_spent_units"`
	TotalSlotSpent    uint64     `json:"total_slot_spent_units"`
	TotalEarned       uint64     `json:"total_earned_units"`
	Claimable         uint64     `json:"claimable_units"`
	CanClaim          bool       `json:"can_claim"`
	NextClaimAt       int64      `json:"next_claim_at"`
	ActiveBusinesses  int        `json:"active_businesses"`
	CreatedAt         time.Time  `json:"created_at"`
	FirstBusinessAt   *time.Time `json:"first_business_at,omitempty"`
	Slots             []SlotView `json:"slots"`
}

type SlotView struct {
	Index           int           `json:"index"`
	Tier            string        `json:"tier"`
	Unlocked        bool          `json:"unlocked"`
	Paid            bool          `json:"paid"`
	AmountPaid      uint64        `json:"amount_paid_units"`
	YieldBonusBps   uint16        `json:"yield_bonus_bps"`
	SellFeeDiscount uint8         `json:"sell_fee_discount_pct"`
	Business        *BusinessView `json:"business,omitempty"`
}

type BusinessView struct {
	Kind            string     `json:"kind"`
	Name            string     `json:"name"`
	BaseInvested    uint64     `json:"base_invested_units"`
	TotalInvested   uint64     `json:"total_invested_units"`
	DailyRateBps    uint16     `json:"daily_rate_bps"`
	UpgradeLevel    uint8      `json:"upgrade_level"`
	NextUpgradeCost *uint64    `json:"next_upgrade_cost_units,omitempty"`
	DailyEarnings   uint64     `json:"daily_earnings_units"`
	Claimable       uint64     `json:"claimable_units"`
	TotalEarned     uint64     `json:"total_earned_units"`
	DaysHeld        uint64     `json:"days_held"`
	PurchasedAt     time.Time  `json:"purchased_at"`
	LastClaimAt     *time.Time `json:"last_claim_at,omitempty"`
	Active          bool       `json:"active"`
}

type KindView struct {
	Kind         string                  `json:"kind"`
	Name         string                  `json:"name"`
	BaseCost     uint64                  `json:"base_cost_units"`
	DailyRateBps uint16                  `json:"daily_rate_bps"`
	UpgradeCosts [MaxUpgradeLevel]uint64 `json:"upgrade_costs_units"`
}

type CatalogView struct {
	Kinds            []KindView    `json:"kinds"`
	PremiumSlotCosts [3]uint64     `json:"premium_slot_costs_units"`
	YieldBonusBps    [3]uint16     `json:"yield_bonus_bps"`
	SellFeeDiscount  [3]uint8      `json:"sell_fee_discount_pct"`
	BasicSlotFeePct  uint64        `json:"basic_slot_fee_pct"`
	EntitlementPrice uint64        `json:"auto_accrual_price_units"`
	EntryFee         uint64        `json:"entry_fee_units"`
	ClaimFeePct      uint64        `json:"claim_fee_pct"`
	SellFeeSchedule  []SellFeeStep `json:"sell_fee_schedule"`
}

type AuditReport struct {
	Owner     Owner        `json:"owner"`
	Healthy   bool         `json:"healthy"`
	PlayerErr string       `json:"player_error,omitempty"`
	Entries   []EntryAudit `json:"entries"`
}

type EntryAudit struct {
	SlotIndex int    `json:"slot_index"`
	Kind      string `json:"kind"`
	Error     string `json:"error,omitempty"`
}

type AuditSummary struct {
	Checked   int     `json:"checked"`
	Unhealthy int     `json:"unhealthy"`
	Failures  []Owner `json:"failures,omitempty"`
}

// Snapshot renders the ledger as seen at now.
func (p *Player) Snapshot(r Rules, now int64) PlayerView {
	out := PlayerView{
		Owner:             p.owner,
		Entitled:          p.entitled,
		EntryPaid:         p.entryPaid,
		TotalInvested:     p.totalInvested,
		TotalUpgradeSpent: p.totalUpgradeSpent,
		TotalSlotSpent:    p.totalSlotSpent,
		TotalEarned:       p.totalEarned,
		Claimable:         p.TotalClaimable(r, now),
		CanClaim:          p.ClaimEligible(now),
		NextClaimAt:       p.NextClaimAt(now),
		ActiveBusinesses:  p.ActiveBusinesses(),
		CreatedAt:         p.createdAt.Time(),
		Slots:             make([]SlotView, 0, SlotCount),
	}
	if p.firstBusinessAt.IsSet() {
		t := p.firstBusinessAt.Time()
		out.FirstBusinessAt = &t
	}
	for i := range p.slots {
		s := &p.slots[i]
		sv := SlotView{
			Index:           i,
			Tier:            s.tier.String(),
			Unlocked:        s.unlocked,
			Paid:            s.paid,
			AmountPaid:      s.amountPaid,
			YieldBonusBps:   s.YieldBonusBps(r),
			SellFeeDiscount: s.SellFeeDiscount(r),
		}
		if b := s.occupant; b != nil {
			bv := &BusinessView{
				Kind:          b.kind.String(),
				Name:          b.kind.DisplayName(),
				BaseInvested:  b.baseInvested,
				TotalInvested: b.totalInvested,
				DailyRateBps:  b.dailyRateBps,
				UpgradeLevel:  b.upgradeLevel,
				DailyEarnings: s.AppliedEarnings(r, b.FullDailyEarningsIfActive()),
				Claimable:     p.slotEarnings(r, i, now),
				TotalEarned:   b.totalEarned,
				DaysHeld:      b.DaysSinceCreated(now),
				PurchasedAt:   b.purchasedAt.Time(),
				Active:        b.active,
			}
			if cost, ok := b.NextUpgradeCost(); ok {
				bv.NextUpgradeCost = &cost
			}
			if last, ok := b.LastClaimAt(); ok {
				t := last.Time()
				bv.LastClaimAt = &t
			}
			sv.Business = bv
		}
		out.Slots = append(out.Slots, sv)
	}
	return out
}

func (r Rules) Catalog() CatalogView {
	out := CatalogView{
		PremiumSlotCosts: r.PremiumSlotCosts,
		YieldBonusBps:    r.YieldBonusBps,
		SellFeeDiscount:  r.SellFeeDiscountPercent,
		BasicSlotFeePct:  r.BasicSlotFeePercent,
		EntitlementPrice: r.EntitlementPrice,
		EntryFee:         r.EntryFee,
		ClaimFeePct:      ClaimFeePercent,
		SellFeeSchedule:  append([]SellFeeStep(nil), r.SellFeeSchedule...),
	}
	for _, k := range Kinds() {
		costs, _ := UpgradeSchedule(k.BaseCost())
		out.Kinds = append(out.Kinds, KindView{
			Kind:         k.String(),
			Name:         k.DisplayName(),
			BaseCost:     k.BaseCost(),
			DailyRateBps: k.BaseRateBps(),
			UpgradeCosts: costs,
		})
	}
	return out
}
