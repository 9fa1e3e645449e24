package game

import "fmt"

// SlotTier is the 2-bit slot tier id persisted in slot flags.
type SlotTier uint8

const (
	TierBasic SlotTier = iota
	TierPremium
	TierVIP
	TierLegendary
)

func (t SlotTier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierPremium:
		return "premium"
	case TierVIP:
		return "vip"
	case TierLegendary:
		return "legendary"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// premiumIndex maps premium tiers onto the Rules tables.
func (t SlotTier) premiumIndex() (int, bool) {
	if t < TierPremium || t > TierLegendary {
		return 0, false
	}
	return int(t - TierPremium), true
}

type Slot struct {
	tier       SlotTier
	unlocked   bool
	occupied   bool
	paid       bool
	occupant   *Business
	amountPaid uint64
}

// NewFreeSlot is a basic slot that never charges a slot fee.
func NewFreeSlot() Slot {
	return Slot{tier: TierBasic, unlocked: true, paid: true}
}

func NewBasicSlot() Slot {
	return Slot{tier: TierBasic, unlocked: true}
}

func NewPremiumSlot(tier SlotTier) Slot {
	return Slot{tier: tier, unlocked: true}
}

func (s *Slot) Tier() SlotTier { return s.tier }
func (s *Slot) Unlocked() bool { return s.unlocked }
func (s *Slot) Occupied() bool { return s.occupied }
func (s *Slot) Paid() bool { return s.paid }
func (s *Slot) AmountPaid() uint64 { return s.amountPaid }
func (s *Slot) IsPremium() bool {
	_, ok := s.tier.premiumIndex()
	return ok
}

// Occupant returns a copy of the business in the slot.
func (s *Slot) Occupant() (Business, bool) {
	if s.occupant == nil {
		return Business{}, false
	}
	return *s.occupant, true
}

func (s *Slot) Pay(cost uint64) error {
	if s.paid {
		return ErrAlreadyPaid
	}
	s.paid = true
	s.amountPaid = cost
	return nil
}

// Cost is the one-time slot fee owed before placing a business priced at price.
func (s *Slot) Cost(r Rules, price uint64) uint64 {
	if s.paid {
		return 0
	}
	if idx, ok := s.tier.premiumIndex(); ok {
		return r.PremiumSlotCosts[idx]
	}
	return mulDivSaturating(price, r.BasicSlotFeePercent, 100)
}

func (s *Slot) Place(entry Business) error {
	if s.occupied {
		return ErrSlotOccupied
	}
	e := entry
	s.occupant = &e
	s.occupied = true
	return nil
}

func (s *Slot) Remove() (Business, error) {
	if !s.occupied || s.occupant == nil {
		return Business{}, ErrSlotEmpty
	}
	out := *s.occupant
	s.occupant = nil
	s.occupied = false
	return out, nil
}

func (s *Slot) replace(entry Business) {
	e := entry
	s.occupant = &e
}

func (s *Slot) YieldBonusBps(r Rules) uint16 {
	if idx, ok := s.tier.premiumIndex(); ok {
		return r.YieldBonusBps[idx]
	}
	return 0
}

func (s *Slot) SellFeeDiscount(r Rules) uint8 {
	if idx, ok := s.tier.premiumIndex(); ok {
		return r.SellFeeDiscountPercent[idx]
	}
	return 0
}

// AppliedEarnings adds the tier's yield bonus on top of base earnings.
func (s *Slot) AppliedEarnings(r Rules, base uint64) uint64 {
	if !s.occupied {
		return 0
	}
	bonus := mulDivSaturating(base, uint64(s.YieldBonusBps(r)), BasisPoints)
	return saturatingAdd(base, bonus)
}
