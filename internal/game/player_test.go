package game

import (
	"bytes"
	"errors"
	"testing"
)

func testOwner(b byte) Owner {
	var o Owner
	for i := range o {
		o[i] = b
	}
	return o
}

func mustMarshal(t *testing.T, p *Player) []byte {
	t.Helper()
	raw, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestNewPlayerLayout(t *testing.T) {
	p := NewPlayer(testOwner(1), testNow)
	wantTier := [SlotCount]SlotTier{TierBasic, TierBasic, TierBasic, TierBasic, TierBasic, TierBasic, TierPremium, TierVIP, TierLegendary}
	for i := range p.slots {
		s := &p.slots[i]
		if s.Tier() != wantTier[i] {
			t.Fatalf("slot %d tier got %s want %s", i, s.Tier(), wantTier[i])
		}
		if !s.Unlocked() || s.Occupied() {
			t.Fatalf("slot %d should be unlocked and empty", i)
		}
		if s.Paid() != (i < 3) {
			t.Fatalf("slot %d paid=%v", i, s.Paid())
		}
	}
	if p.UnlockedSlots() != SlotCount || p.PremiumSlots() != 3 {
		t.Fatalf("counters got %d/%d", p.UnlockedSlots(), p.PremiumSlots())
	}
	if p.CreatedAt().Unix() != testNow || p.FirstBusinessAt().IsSet() {
		t.Fatalf("timestamps not initialized")
	}
}

func TestClaimWithoutEntitlement(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(2), testNow)
	if _, err := p.Acquire(r, 0, NewBusiness(KindKiosk, KindKiosk.BaseCost(), testNow), testNow); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	daily := uint64(2_000_000)

	first := testNow + 10
	if !p.ClaimEligible(first) {
		t.Fatalf("first claim should be eligible")
	}
	got, err := p.Claim(r, first)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != daily {
		t.Fatalf("got %d want %d", got, daily)
	}

	before := mustMarshal(t, p)
	if _, err := p.Claim(r, first+ClaimCooldown-1); !errors.Is(err, ErrClaimTooEarly) {
		t.Fatalf("expected ErrClaimTooEarly, got %v", err)
	}
	if !bytes.Equal(before, mustMarshal(t, p)) {
		t.Fatalf("failed claim mutated the ledger")
	}
	if next := p.NextClaimAt(first); next != first+ClaimCooldown {
		t.Fatalf("next claim got %d want %d", next, first+ClaimCooldown)
	}

	got, err = p.Claim(r, first+ClaimCooldown)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if got != daily {
		t.Fatalf("second claim got %d want %d", got, daily)
	}
	if p.TotalEarned() != 2*daily {
		t.Fatalf("total earned got %d want %d", p.TotalEarned(), 2*daily)
	}
	entry, _ := p.Occupant(0)
	if entry.TotalEarned() != 2*daily {
		t.Fatalf("entry earned got %d want %d", entry.TotalEarned(), 2*daily)
	}
}

func TestClaimWithEntitlementIsProRata(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(3), testNow)
	if err := p.PurchaseEntitlement(); err != nil {
		t.Fatalf("entitle: %v", err)
	}
	if err := p.PlaceInSlot(1, NewBusiness(KindKiosk, KindKiosk.BaseCost(), testNow)); err != nil {
		t.Fatalf("place: %v", err)
	}

	got, err := p.Claim(r, testNow+43_200)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != 1_000_000 {
		t.Fatalf("got %d want %d", got, 1_000_000)
	}

	before := mustMarshal(t, p)
	if _, err := p.Claim(r, testNow+43_200); !errors.Is(err, ErrNoEarnings) {
		t.Fatalf("expected ErrNoEarnings, got %v", err)
	}
	if !bytes.Equal(before, mustMarshal(t, p)) {
		t.Fatalf("failed claim mutated the ledger")
	}
	if got := p.TotalClaimable(r, testNow+43_200+8_640); got != 200_000 {
		t.Fatalf("tenth of a day got %d want %d", got, 200_000)
	}
}

func TestClaimWithNoBusinesses(t *testing.T) {
	p := NewPlayer(testOwner(4), testNow)
	if _, err := p.Claim(DefaultRules(), testNow+ClaimCooldown); !errors.Is(err, ErrNoEarnings) {
		t.Fatalf("expected ErrNoEarnings, got %v", err)
	}
}

func TestPurchaseEntitlementOnce(t *testing.T) {
	p := NewPlayer(testOwner(5), testNow)
	if err := p.PurchaseEntitlement(); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	before := mustMarshal(t, p)
	if err := p.PurchaseEntitlement(); !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected ErrAlreadyPurchased, got %v", err)
	}
	if !bytes.Equal(before, mustMarshal(t, p)) {
		t.Fatalf("second purchase mutated the ledger")
	}
	if !p.ClaimEligible(testNow) {
		t.Fatalf("entitled player should always be eligible")
	}
}

func TestSellThenReplaceDoesNotRecharge(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(6), testNow)
	price := KindParlor.BaseCost()

	fee, err := p.Acquire(r, 3, NewBusiness(KindParlor, price, testNow), testNow)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if fee != price/10 {
		t.Fatalf("slot fee got %d want %d", fee, price/10)
	}

	entry, discount, err := p.SellFromSlot(r, 3)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if entry.Kind() != KindParlor || discount != 0 {
		t.Fatalf("sold %v discount %d", entry.Kind(), discount)
	}

	fee, err = p.Acquire(r, 3, NewBusiness(KindKiosk, KindKiosk.BaseCost(), testNow+5), testNow+5)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if fee != 0 {
		t.Fatalf("slot charged twice: %d", fee)
	}
	if p.TotalSlotSpent() != price/10 {
		t.Fatalf("slot spend got %d want %d", p.TotalSlotSpent(), price/10)
	}
	if p.TotalInvested() != price+KindKiosk.BaseCost() {
		t.Fatalf("invested got %d", p.TotalInvested())
	}
	if p.FirstBusinessAt().Unix() != testNow {
		t.Fatalf("first business time moved")
	}
}

func TestZeroSlotFeeLeavesSlotUnpaid(t *testing.T) {
	r := DefaultRules()
	r.PremiumSlotCosts[0] = 0
	p := NewPlayer(testOwner(9), testNow)

	fee, err := p.PaySlotIfNeeded(r, 3, 5)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if fee != 0 || p.slots[3].Paid() || p.TotalSlotSpent() != 0 {
		t.Fatalf("zero fee: got fee %d paid=%v spent %d", fee, p.slots[3].Paid(), p.TotalSlotSpent())
	}
	fee, err = p.PaySlotIfNeeded(r, 3, UnitsPerCoin)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if fee != UnitsPerCoin/10 || !p.slots[3].Paid() {
		t.Fatalf("later fee got %d paid=%v, want %d", fee, p.slots[3].Paid(), UnitsPerCoin/10)
	}

	fee, err = p.PaySlotIfNeeded(r, 6, UnitsPerCoin)
	if err != nil {
		t.Fatalf("pay premium: %v", err)
	}
	if fee != 0 || p.slots[6].Paid() {
		t.Fatalf("free premium slot: fee %d paid=%v", fee, p.slots[6].Paid())
	}
}

func TestClaimWithBackwardsClockKeepsStampsAfterPurchase(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(10), testNow)
	if err := p.PurchaseEntitlement(); err != nil {
		t.Fatalf("entitle: %v", err)
	}
	if err := p.PlaceInSlot(0, NewBusiness(KindKiosk, KindKiosk.BaseCost(), testNow)); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := p.PlaceInSlot(1, NewBusiness(KindKiosk, KindKiosk.BaseCost(), testNow+1_000)); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := p.Claim(r, testNow+600); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, ok := p.slots[1].occupant.LastClaimAt(); ok {
		t.Fatalf("entry bought after the claim time was stamped")
	}
	last, ok := p.slots[0].occupant.LastClaimAt()
	if !ok || last.Unix() != testNow+600 {
		t.Fatalf("got %d,%v want %d", last, ok, testNow+600)
	}
}

func TestPremiumSlotBonusAndDiscount(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(7), testNow)
	fee, err := p.Acquire(r, 7, NewBusiness(KindKiosk, KindKiosk.BaseCost(), testNow), testNow)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if fee != r.PremiumSlotCosts[1] {
		t.Fatalf("vip fee got %d want %d", fee, r.PremiumSlotCosts[1])
	}
	if got := p.TotalClaimable(r, testNow+1); got != 2_060_000 {
		t.Fatalf("claimable got %d want %d", got, 2_060_000)
	}
	_, discount, err := p.SellFromSlot(r, 7)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if discount != 50 {
		t.Fatalf("discount got %d want 50", discount)
	}
}

func TestPlayerRejectsBadSlotsWithoutMutation(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(8), testNow)
	if err := p.PlaceInSlot(0, NewBusiness(KindKiosk, 1_000, testNow)); err != nil {
		t.Fatalf("place: %v", err)
	}
	before := mustMarshal(t, p)

	checks := []struct {
		name string
		want error
		run  func() error
	}{
		{name: "place negative", want: ErrInvalidIndex, run: func() error { return p.PlaceInSlot(-1, NewBusiness(KindKiosk, 1, testNow)) }},
		{name: "place past end", want: ErrInvalidIndex, run: func() error { return p.PlaceInSlot(SlotCount, NewBusiness(KindKiosk, 1, testNow)) }},
		{name: "place occupied", want: ErrSlotOccupied, run: func() error { return p.PlaceInSlot(0, NewBusiness(KindKiosk, 1, testNow)) }},
		{name: "acquire occupied", want: ErrSlotOccupied, run: func() error {
			_, err := p.Acquire(r, 0, NewBusiness(KindKiosk, 1, testNow), testNow)
			return err
		}},
		{name: "sell empty", want: ErrSlotEmpty, run: func() error {
			_, _, err := p.SellFromSlot(r, 4)
			return err
		}},
		{name: "upgrade empty", want: ErrSlotEmpty, run: func() error { return p.UpgradeInSlot(4, 10, NewBusiness(KindKiosk, 1, testNow)) }},
		{name: "upgrade bad index", want: ErrInvalidIndex, run: func() error { return p.UpgradeInSlot(12, 10, NewBusiness(KindKiosk, 1, testNow)) }},
		{name: "pay bad index", want: ErrInvalidIndex, run: func() error {
			_, err := p.PaySlotIfNeeded(r, -3, 10)
			return err
		}},
	}
	for _, tc := range checks {
		if err := tc.run(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
		if !bytes.Equal(before, mustMarshal(t, p)) {
			t.Fatalf("%s: ledger mutated", tc.name)
		}
	}
}

func TestUpgradeInSlot(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(9), testNow)
	if _, err := p.Acquire(r, 2, NewBusiness(KindGarage, KindGarage.BaseCost(), testNow), testNow); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	current, _ := p.Occupant(2)
	cost, ok := current.NextUpgradeCost()
	if !ok {
		t.Fatalf("expected an upgrade cost")
	}
	next, err := current.Upgraded(cost)
	if err != nil {
		t.Fatalf("upgraded: %v", err)
	}
	if err := p.UpgradeInSlot(2, cost, next); err != nil {
		t.Fatalf("upgrade in slot: %v", err)
	}
	got, _ := p.Occupant(2)
	if got.UpgradeLevel() != 1 || got.TotalInvested() != KindGarage.BaseCost()+cost {
		t.Fatalf("slot not upgraded: level %d total %d", got.UpgradeLevel(), got.TotalInvested())
	}
	if p.TotalUpgradeSpent() != cost {
		t.Fatalf("upgrade spend got %d want %d", p.TotalUpgradeSpent(), cost)
	}
}

func TestFindFreeSlot(t *testing.T) {
	p := NewPlayer(testOwner(10), testNow)
	for want := 0; want < SlotCount; want++ {
		i, ok := p.FindFreeSlot()
		if !ok || i != want {
			t.Fatalf("got %d,%v want %d", i, ok, want)
		}
		if err := p.PlaceInSlot(i, NewBusiness(KindKiosk, 1, testNow)); err != nil {
			t.Fatalf("place: %v", err)
		}
	}
	if _, ok := p.FindFreeSlot(); ok {
		t.Fatalf("expected no free slot")
	}
	if p.ActiveBusinesses() != SlotCount || len(p.Businesses()) != SlotCount {
		t.Fatalf("active got %d", p.ActiveBusinesses())
	}
}

func TestSnapshot(t *testing.T) {
	r := DefaultRules()
	p := NewPlayer(testOwner(11), testNow)
	if _, err := p.Acquire(r, 6, NewBusiness(KindLounge, KindLounge.BaseCost(), testNow), testNow); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	view := p.Snapshot(r, testNow+60)
	if len(view.Slots) != SlotCount {
		t.Fatalf("got %d slots", len(view.Slots))
	}
	slot := view.Slots[6]
	if slot.Business == nil || slot.Business.Kind != "lounge" {
		t.Fatalf("slot 6 business missing: %+v", slot)
	}
	if slot.Tier != "premium" || !slot.Paid || slot.AmountPaid != r.PremiumSlotCosts[0] {
		t.Fatalf("slot 6 view wrong: %+v", slot)
	}
	if view.Claimable != slot.Business.Claimable || !view.CanClaim {
		t.Fatalf("claimable %d vs %d, can claim %v", view.Claimable, slot.Business.Claimable, view.CanClaim)
	}
	if slot.Business.NextUpgradeCost == nil || *slot.Business.NextUpgradeCost != KindLounge.BaseCost()/2 {
		t.Fatalf("next upgrade cost wrong")
	}
	if view.FirstBusinessAt == nil || view.ActiveBusinesses != 1 {
		t.Fatalf("aggregates wrong: %+v", view)
	}
}
