package game

import (
	"errors"
	"fmt"
)

// SellFeeStep applies Percent once a business has been held at least MinDays.
type SellFeeStep struct {
	MinDays uint64 `json:"min_days"`
	Percent uint64 `json:"percent"`
}

// Rules holds the configurable economy tables. Index 0..2 of the premium
// arrays map to the premium, vip and legendary tiers.
type Rules struct {
	BasicSlotFeePercent    uint64
	PremiumSlotCosts       [3]uint64
	YieldBonusBps          [3]uint16
	SellFeeDiscountPercent [3]uint8
	EntitlementPrice       uint64
	EntryFee               uint64
	SellFeeSchedule        []SellFeeStep
}

func DefaultRules() Rules {
	return Rules{
		BasicSlotFeePercent:    10,
		PremiumSlotCosts:       [3]uint64{UnitsPerCoin, 2 * UnitsPerCoin, 5 * UnitsPerCoin},
		YieldBonusBps:          [3]uint16{150, 300, 500},
		SellFeeDiscountPercent: [3]uint8{0, 50, 100},
		EntitlementPrice:       UnitsPerCoin / 20,
		EntryFee:               UnitsPerCoin / 100,
		SellFeeSchedule: []SellFeeStep{
			{MinDays: 0, Percent: 25},
			{MinDays: 1, Percent: 20},
			{MinDays: 3, Percent: 15},
			{MinDays: 7, Percent: 10},
			{MinDays: 14, Percent: 5},
			{MinDays: 30, Percent: 2},
		},
	}
}

func (r Rules) Validate() error {
	if r.BasicSlotFeePercent > 100 {
		return fmt.Errorf("basic slot fee percent %d exceeds 100", r.BasicSlotFeePercent)
	}
	for i, bps := range r.YieldBonusBps {
		if uint64(bps) > BasisPoints {
			return fmt.Errorf("yield bonus %d for premium tier %d exceeds %d bps", bps, i, BasisPoints)
		}
	}
	for i, pct := range r.SellFeeDiscountPercent {
		if pct > 100 {
			return fmt.Errorf("sell fee discount %d for premium tier %d exceeds 100", pct, i)
		}
	}
	if len(r.SellFeeSchedule) == 0 {
		return errors.New("sell fee schedule is empty")
	}
	if r.SellFeeSchedule[0].MinDays != 0 {
		return errors.New("sell fee schedule must start at day 0")
	}
	for i, step := range r.SellFeeSchedule {
		if step.Percent > 100 {
			return fmt.Errorf("sell fee step %d percent %d exceeds 100", i, step.Percent)
		}
		if i > 0 && step.MinDays <= r.SellFeeSchedule[i-1].MinDays {
			return fmt.Errorf("sell fee schedule must be strictly ascending at step %d", i)
		}
	}
	return nil
}

func (r Rules) sellFeePercent(daysHeld uint64) uint64 {
	for i := len(r.SellFeeSchedule) - 1; i >= 0; i-- {
		if daysHeld >= r.SellFeeSchedule[i].MinDays {
			return r.SellFeeSchedule[i].Percent
		}
	}
	return 0
}

type ClaimSettlement struct {
	Gross uint64 `json:"gross_units"`
	Fee   uint64 `json:"fee_units"`
	Net   uint64 `json:"net_units"`
}

// SplitClaim divides a gross claim into the protocol fee and the net payout.
func SplitClaim(gross uint64) ClaimSettlement {
	fee := mulDivSaturating(gross, ClaimFeePercent, 100)
	return ClaimSettlement{Gross: gross, Fee: fee, Net: gross - fee}
}

type SaleSettlement struct {
	Basis    uint64 `json:"basis_units"`
	FeePct   uint64 `json:"fee_percent"`
	Fee      uint64 `json:"fee_units"`
	Refund   uint64 `json:"refund_units"`
	DaysHeld uint64 `json:"days_held"`
}

// SaleRefund prices selling entry after discountPct is knocked off the holding-age fee.
func (r Rules) SaleRefund(entry Business, discountPct uint8, now int64) SaleSettlement {
	if discountPct > 100 {
		discountPct = 100
	}
	days := entry.DaysSinceCreated(now)
	pct := r.sellFeePercent(days)
	if pct > 100 {
		pct = 100
	}
	effective := pct * (100 - uint64(discountPct))
	basis := entry.RefundBasis()
	fee := mulDivSaturating(basis, effective, 100*100)
	return SaleSettlement{
		Basis:    basis,
		FeePct:   effective / 100,
		Fee:      fee,
		Refund:   basis - fee,
		DaysHeld: days,
	}
}
