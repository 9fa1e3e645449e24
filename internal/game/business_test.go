package game

import (
	"errors"
	"math"
	"testing"
)

const testNow = int64(1_700_000_000)

func TestEarningsForPeriodHalfDay(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000_000, testNow)
	b.dailyRateBps = 300

	if got := b.DailyEarnings(); got != 30_000 {
		t.Fatalf("daily got %d want %d", got, 30_000)
	}
	if got := b.EarningsForPeriod(43_200); got != 15_000 {
		t.Fatalf("half day got %d want %d", got, 15_000)
	}
	if got := b.ClaimableEarnings(testNow + 43_200); got != 15_000 {
		t.Fatalf("claimable got %d want %d", got, 15_000)
	}
	if got := b.EarningsForPeriod(0); got != 0 {
		t.Fatalf("zero period got %d", got)
	}
	if got := b.ClaimableEarnings(testNow - 10); got != 0 {
		t.Fatalf("clock before purchase got %d", got)
	}

	b.active = false
	if got := b.EarningsForPeriod(43_200); got != 0 {
		t.Fatalf("inactive got %d", got)
	}
	if got := b.FullDailyEarningsIfActive(); got != 0 {
		t.Fatalf("inactive full day got %d", got)
	}
}

func TestEarningsClampInsteadOfWrapping(t *testing.T) {
	b := NewBusiness(KindKiosk, math.MaxUint64, 0)
	b.dailyRateBps = MaxDailyRateBps
	if got := b.EarningsForPeriod(math.MaxInt64); got != math.MaxUint64 {
		t.Fatalf("got %d want clamp", got)
	}
}

func TestNewBusinessAtLevel(t *testing.T) {
	base := uint64(1_000)
	b, err := NewBusinessAtLevel(KindParlor, base, 2, [MaxUpgradeLevel]uint64{100, 200, 0}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.TotalInvested() != base+300 {
		t.Fatalf("total got %d want %d", b.TotalInvested(), base+300)
	}
	if b.UpgradeLevel() != 2 {
		t.Fatalf("level got %d want 2", b.UpgradeLevel())
	}
	if b.UpgradeHistory() != [MaxUpgradeLevel]uint64{100, 200, 0} {
		t.Fatalf("history got %v", b.UpgradeHistory())
	}
	if b.DailyRateBps() != KindParlor.BaseRateBps() {
		t.Fatalf("rate changed on upgrade: %d", b.DailyRateBps())
	}
	if err := b.HealthCheck(testNow); err != nil {
		t.Fatalf("health: %v", err)
	}

	if _, err := NewBusinessAtLevel(KindParlor, base, 4, [MaxUpgradeLevel]uint64{}, testNow); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestApplyUpgradeRejectsWithoutMutation(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000, testNow)
	before := b

	if err := b.ApplyUpgrade(2, 10); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("skip level: expected ErrInvalidLevel, got %v", err)
	}
	if err := b.ApplyUpgrade(0, 10); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("level zero: expected ErrInvalidLevel, got %v", err)
	}
	if b != before {
		t.Fatalf("business mutated on invalid level")
	}

	huge := NewBusiness(KindKiosk, math.MaxUint64, testNow)
	snapshot := huge
	if err := huge.ApplyUpgrade(1, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if huge != snapshot {
		t.Fatalf("business mutated on overflow")
	}
}

func TestNextUpgradeCost(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000, testNow)
	want := []uint64{500, 1_000, 2_000}
	for lvl, w := range want {
		got, ok := b.NextUpgradeCost()
		if !ok || got != w {
			t.Fatalf("level %d got %d,%v want %d", lvl, got, ok, w)
		}
		next, err := b.Upgraded(got)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		if b.UpgradeLevel() != uint8(lvl) {
			t.Fatalf("Upgraded mutated the receiver")
		}
		b = next
	}
	if _, ok := b.NextUpgradeCost(); ok {
		t.Fatalf("expected no cost at max level")
	}
	if b.CanUpgrade() {
		t.Fatalf("expected CanUpgrade false at max")
	}
	if b.TotalInvested() != 4_500 {
		t.Fatalf("total got %d want %d", b.TotalInvested(), 4_500)
	}
}

func TestUpgradeToChecksCost(t *testing.T) {
	b := NewBusiness(KindGarage, 2_000, testNow)
	if err := b.UpgradeTo(1, 999); !errors.Is(err, ErrUpgradeCostMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := b.UpgradeTo(1, 1_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.UpgradeTo(1, 1_000); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel for same level, got %v", err)
	}
}

func TestClaimTimeMovesForwardOnly(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000, testNow)
	if _, ok := b.LastClaimAt(); ok {
		t.Fatalf("new business should have no claim")
	}
	if b.EarningsStartTime() != CompactFromUnix(testNow) {
		t.Fatalf("start should be purchase time")
	}

	b.UpdateClaimTime(testNow + 100)
	b.UpdateClaimTime(testNow + 50)
	last, ok := b.LastClaimAt()
	if !ok || last.Unix() != testNow+100 {
		t.Fatalf("got %d,%v want %d", last, ok, testNow+100)
	}
	if b.EarningsStartTime().Unix() != testNow+100 {
		t.Fatalf("start should follow last claim")
	}
}

func TestClaimTimeNeverBeforePurchase(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000, testNow)
	b.UpdateClaimTime(testNow - 100)
	if _, ok := b.LastClaimAt(); ok {
		t.Fatalf("stamped a claim before purchase")
	}
	if err := b.HealthCheck(testNow); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestClaimableNonDecreasing(t *testing.T) {
	b := NewBusiness(KindGarage, KindGarage.BaseCost(), testNow)
	if got := b.ClaimableEarnings(testNow - 60); got != 0 {
		t.Fatalf("before purchase got %d want 0", got)
	}

	var prev uint64
	for now := testNow; now <= testNow+3*SecondsPerDay; now += 3_607 {
		got := b.ClaimableEarnings(now)
		if got < prev {
			t.Fatalf("at %d got %d, previous %d", now, got, prev)
		}
		prev = got
	}

	stamp := testNow + SecondsPerDay
	b.UpdateClaimTime(stamp)
	if got := b.ClaimableEarnings(stamp); got != 0 {
		t.Fatalf("at claim stamp got %d want 0", got)
	}
	prev = 0
	for now := stamp; now <= stamp+2*SecondsPerDay; now += 1_801 {
		got := b.ClaimableEarnings(now)
		if got < prev {
			t.Fatalf("after claim at %d got %d, previous %d", now, got, prev)
		}
		prev = got
	}
	if prev == 0 {
		t.Fatalf("no accrual after claim")
	}
}

func TestBusinessHealthCheck(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000, testNow)
	if err := b.HealthCheck(testNow); err != nil {
		t.Fatalf("fresh business unhealthy: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Business)
	}{
		{name: "total mismatch", mutate: func(b *Business) { b.totalInvested++ }},
		{name: "level too high", mutate: func(b *Business) { b.upgradeLevel = 4 }},
		{name: "rate too high", mutate: func(b *Business) { b.dailyRateBps = 10_001 }},
		{name: "claim before purchase", mutate: func(b *Business) { b.lastClaimAt = b.purchasedAt - 1 }},
		{name: "claim in future", mutate: func(b *Business) { b.lastClaimAt = CompactFromUnix(testNow + 10) }},
		{name: "unknown kind", mutate: func(b *Business) { b.kind = 99 }},
		{name: "created in future", mutate: func(b *Business) { b.createdAt = testNow + 500 }},
		{name: "purchased in future", mutate: func(b *Business) { b.purchasedAt = CompactFromUnix(testNow + 500) }},
	}
	for _, tc := range tests {
		bad := b
		tc.mutate(&bad)
		if err := bad.HealthCheck(testNow); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: expected ErrInvalidState, got %v", tc.name, err)
		}
	}
}

func TestDaysSinceCreatedAndEarned(t *testing.T) {
	b := NewBusiness(KindKiosk, 1_000, testNow)
	if got := b.DaysSinceCreated(testNow + 3*SecondsPerDay + 5); got != 3 {
		t.Fatalf("got %d want 3", got)
	}
	if got := b.DaysSinceCreated(testNow - 1); got != 0 {
		t.Fatalf("got %d want 0", got)
	}
	if err := b.AddEarned(10); err != nil {
		t.Fatalf("add earned: %v", err)
	}
	b.totalEarned = math.MaxUint64
	if err := b.AddEarned(1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
