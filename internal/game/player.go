package game

import "fmt"

// Player is one owner's ledger: nine slots plus lifetime aggregates.
// Every mutating method validates before it writes, so a failed call leaves
// the ledger unchanged.
type Player struct {
	owner             Owner
	slots             [SlotCount]Slot
	unlockedSlots     uint8
	premiumSlots      uint8
	entryPaid         bool
	totalInvested     uint64
	totalUpgradeSpent uint64
	totalSlotSpent    uint64
	totalEarned       uint64
	entitled          bool
	createdAt         CompactTime
	firstBusinessAt   CompactTime
}

// NewPlayer lays out slots 0-2 free, 3-5 basic, then premium, vip and legendary.
func NewPlayer(owner Owner, now int64) *Player {
	p := &Player{
		owner:         owner,
		unlockedSlots: SlotCount,
		premiumSlots:  3,
		createdAt:     CompactFromUnix(now),
	}
	for i := 0; i < 3; i++ {
		p.slots[i] = NewFreeSlot()
	}
	for i := 3; i < 6; i++ {
		p.slots[i] = NewBasicSlot()
	}
	p.slots[6] = NewPremiumSlot(TierPremium)
	p.slots[7] = NewPremiumSlot(TierVIP)
	p.slots[8] = NewPremiumSlot(TierLegendary)
	return p
}

func (p *Player) Owner() Owner { return p.owner }
func (p *Player) Entitled() bool { return p.entitled }
func (p *Player) EntryPaid() bool { return p.entryPaid }
func (p *Player) TotalInvested() uint64 { return p.totalInvested }
func (p *Player) TotalUpgradeSpent() uint64 { return p.totalUpgradeSpent }
func (p *Player) TotalSlotSpent() uint64 { return p.totalSlotSpent }
func (p *Player) TotalEarned() uint64 { return p.totalEarned }
func (p *Player) CreatedAt() CompactTime { return p.createdAt }
func (p *Player) FirstBusinessAt() CompactTime { return p.firstBusinessAt }
func (p *Player) UnlockedSlots() uint8 { return p.unlockedSlots }
func (p *Player) PremiumSlots() uint8 { return p.premiumSlots }

func (p *Player) MarkEntryPaid() {
	p.entryPaid = true
}

func checkIndex(i int) error {
	if i < 0 || i >= SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	return nil
}

// Occupant returns a copy of the business in slot i.
func (p *Player) Occupant(i int) (Business, bool) {
	if checkIndex(i) != nil {
		return Business{}, false
	}
	return p.slots[i].Occupant()
}

// Businesses returns copies of every placed business keyed by slot index.
func (p *Player) Businesses() map[int]Business {
	out := make(map[int]Business)
	for i := range p.slots {
		if b, ok := p.slots[i].Occupant(); ok {
			out[i] = b
		}
	}
	return out
}

func (p *Player) ActiveBusinesses() int {
	n := 0
	for i := range p.slots {
		if b := p.slots[i].occupant; b != nil && b.active {
			n++
		}
	}
	return n
}

func (p *Player) slotEarnings(r Rules, i int, now int64) uint64 {
	s := &p.slots[i]
	if s.occupant == nil {
		return 0
	}
	var base uint64
	if p.entitled {
		base = s.occupant.ClaimableEarnings(now)
	} else {
		base = s.occupant.FullDailyEarningsIfActive()
	}
	return s.AppliedEarnings(r, base)
}

// TotalClaimable sums what a claim at now would pay. Entitled players accrue
// pro-rata; everyone else is paid one full day per claim.
func (p *Player) TotalClaimable(r Rules, now int64) uint64 {
	var total uint64
	for i := range p.slots {
		total = saturatingAdd(total, p.slotEarnings(r, i, now))
	}
	return total
}

// LatestClaimAt is the most recent claim stamp across businesses, 0 if none.
func (p *Player) LatestClaimAt() int64 {
	var latest CompactTime
	for i := range p.slots {
		if b := p.slots[i].occupant; b != nil && b.lastClaimAt > latest {
			latest = b.lastClaimAt
		}
	}
	return latest.Unix()
}

func (p *Player) ClaimEligible(now int64) bool {
	if p.entitled {
		return true
	}
	return now-p.LatestClaimAt() >= ClaimCooldown
}

// NextClaimAt is the earliest time ClaimEligible turns true.
func (p *Player) NextClaimAt(now int64) int64 {
	if p.entitled {
		return now
	}
	next := p.LatestClaimAt() + ClaimCooldown
	if next < now {
		return now
	}
	return next
}

// Claim books everything claimable at now and restarts accrual on every
// business. The caller moves the funds.
func (p *Player) Claim(r Rules, now int64) (uint64, error) {
	if !p.ClaimEligible(now) {
		return 0, ErrClaimTooEarly
	}
	amount := p.TotalClaimable(r, now)
	if amount == 0 {
		return 0, ErrNoEarnings
	}
	for i := range p.slots {
		b := p.slots[i].occupant
		if b == nil {
			continue
		}
		b.addEarnedSaturating(p.slotEarnings(r, i, now))
		b.UpdateClaimTime(now)
	}
	p.totalEarned = saturatingAdd(p.totalEarned, amount)
	return amount, nil
}

func (p *Player) PlaceInSlot(i int, entry Business) error {
	if err := checkIndex(i); err != nil {
		return err
	}
	return p.slots[i].Place(entry)
}

// UpgradeInSlot swaps in the upgraded entry and books cost as upgrade spend.
func (p *Player) UpgradeInSlot(i int, cost uint64, replacement Business) error {
	if err := checkIndex(i); err != nil {
		return err
	}
	s := &p.slots[i]
	if !s.occupied || s.occupant == nil {
		return ErrSlotEmpty
	}
	s.replace(replacement)
	p.totalUpgradeSpent = saturatingAdd(p.totalUpgradeSpent, cost)
	return nil
}

// SellFromSlot empties slot i and returns the entry with the slot's sell-fee discount.
// The slot stays paid.
func (p *Player) SellFromSlot(r Rules, i int) (Business, uint8, error) {
	if err := checkIndex(i); err != nil {
		return Business{}, 0, err
	}
	s := &p.slots[i]
	entry, err := s.Remove()
	if err != nil {
		return Business{}, 0, err
	}
	return entry, s.SellFeeDiscount(r), nil
}

func (p *Player) PurchaseEntitlement() error {
	if p.entitled {
		return ErrAlreadyPurchased
	}
	p.entitled = true
	return nil
}

// PaySlotIfNeeded charges slot i's fee for a business priced at price and
// returns what was charged. A slot that is already paid, or whose fee comes to
// zero, is left untouched.
func (p *Player) PaySlotIfNeeded(r Rules, i int, price uint64) (uint64, error) {
	if err := checkIndex(i); err != nil {
		return 0, err
	}
	s := &p.slots[i]
	if s.paid {
		return 0, nil
	}
	cost := s.Cost(r, price)
	if cost == 0 {
		return 0, nil
	}
	if err := s.Pay(cost); err != nil {
		return 0, err
	}
	p.totalSlotSpent = saturatingAdd(p.totalSlotSpent, cost)
	return cost, nil
}

func (p *Player) FindFreeSlot() (int, bool) {
	for i := range p.slots {
		if p.slots[i].unlocked && !p.slots[i].occupied {
			return i, true
		}
	}
	return -1, false
}

// Acquire puts a newly bought entry into slot i, charging the slot fee first
// if one is owed. It returns the slot fee charged.
func (p *Player) Acquire(r Rules, i int, entry Business, now int64) (uint64, error) {
	if err := checkIndex(i); err != nil {
		return 0, err
	}
	if p.slots[i].occupied {
		return 0, ErrSlotOccupied
	}
	fee, err := p.PaySlotIfNeeded(r, i, entry.BaseInvested())
	if err != nil {
		return 0, err
	}
	if err := p.slots[i].Place(entry); err != nil {
		return 0, err
	}
	p.RecordInvestment(entry.TotalInvested(), now)
	p.totalUpgradeSpent = saturatingAdd(p.totalUpgradeSpent, entry.TotalInvested()-entry.BaseInvested())
	return fee, nil
}

// RecordInvestment adds amount to lifetime investment and stamps the first
// business time once.
func (p *Player) RecordInvestment(amount uint64, now int64) {
	p.totalInvested = saturatingAdd(p.totalInvested, amount)
	if !p.firstBusinessAt.IsSet() {
		p.firstBusinessAt = CompactFromUnix(now)
	}
}

// HealthCheck validates the player record itself. Entries are checked
// separately through Business.HealthCheck.
func (p *Player) HealthCheck(_ int64) error {
	return nil
}
