package game

import "testing"

func TestDefaultRulesValid(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
}

func TestRulesValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
	}{
		{name: "basic fee", mutate: func(r *Rules) { r.BasicSlotFeePercent = 101 }},
		{name: "bonus", mutate: func(r *Rules) { r.YieldBonusBps[2] = 10_001 }},
		{name: "discount", mutate: func(r *Rules) { r.SellFeeDiscountPercent[0] = 101 }},
		{name: "empty schedule", mutate: func(r *Rules) { r.SellFeeSchedule = nil }},
		{name: "schedule start", mutate: func(r *Rules) { r.SellFeeSchedule = []SellFeeStep{{MinDays: 1, Percent: 5}} }},
		{name: "schedule order", mutate: func(r *Rules) {
			r.SellFeeSchedule = []SellFeeStep{{MinDays: 0, Percent: 5}, {MinDays: 0, Percent: 2}}
		}},
		{name: "schedule percent", mutate: func(r *Rules) { r.SellFeeSchedule = []SellFeeStep{{MinDays: 0, Percent: 120}} }},
	}
	for _, tc := range tests {
		r := DefaultRules()
		tc.mutate(&r)
		if err := r.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestSaleRefund(t *testing.T) {
	r := DefaultRules()
	entry := NewBusiness(KindParlor, 100_000_000, testNow)

	tests := []struct {
		name     string
		days     int64
		discount uint8
		fee      uint64
	}{
		{name: "same day", days: 0, discount: 0, fee: 25_000_000},
		{name: "same day vip", days: 0, discount: 50, fee: 12_500_000},
		{name: "same day legendary", days: 0, discount: 100, fee: 0},
		{name: "two days", days: 2, discount: 0, fee: 20_000_000},
		{name: "one week", days: 7, discount: 0, fee: 10_000_000},
		{name: "long hold", days: 90, discount: 0, fee: 2_000_000},
	}
	for _, tc := range tests {
		got := r.SaleRefund(entry, tc.discount, testNow+tc.days*SecondsPerDay)
		if got.Fee != tc.fee {
			t.Fatalf("%s: fee got %d want %d", tc.name, got.Fee, tc.fee)
		}
		if got.Basis != entry.TotalInvested() || got.Refund != got.Basis-got.Fee {
			t.Fatalf("%s: settlement inconsistent: %+v", tc.name, got)
		}
		if got.DaysHeld != uint64(tc.days) {
			t.Fatalf("%s: days got %d want %d", tc.name, got.DaysHeld, tc.days)
		}
	}
}

func TestCatalog(t *testing.T) {
	c := DefaultRules().Catalog()
	if len(c.Kinds) != int(kindCount) {
		t.Fatalf("got %d kinds", len(c.Kinds))
	}
	garage := c.Kinds[KindGarage]
	if garage.Kind != "garage" || garage.BaseCost != 2*UnitsPerCoin || garage.UpgradeCosts[2] != 4*UnitsPerCoin {
		t.Fatalf("garage entry wrong: %+v", garage)
	}
	if c.ClaimFeePct != ClaimFeePercent {
		t.Fatalf("claim fee got %d", c.ClaimFeePct)
	}
}
