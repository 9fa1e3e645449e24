package game

import "fmt"

// Business is the ledger entry for one owned business.
// Values are copied in and out of slots; a Business is never shared.
type Business struct {
	kind           BusinessKind
	baseInvested   uint64
	totalInvested  uint64
	dailyRateBps   uint16
	upgradeLevel   uint8
	upgradeHistory [MaxUpgradeLevel]uint64
	totalEarned    uint64
	createdAt      int64
	purchasedAt    CompactTime
	lastClaimAt    CompactTime
	active         bool
}

func NewBusiness(kind BusinessKind, baseInvested uint64, now int64) Business {
	return Business{
		kind:          kind,
		baseInvested:  baseInvested,
		totalInvested: baseInvested,
		dailyRateBps:  kind.BaseRateBps(),
		createdAt:     now,
		purchasedAt:   CompactFromUnix(now),
		active:        true,
	}
}

// NewBusinessAtLevel builds a business already upgraded to targetLevel,
// charging costs[0:targetLevel] in order.
func NewBusinessAtLevel(kind BusinessKind, baseInvested uint64, targetLevel uint8, costs [MaxUpgradeLevel]uint64, now int64) (Business, error) {
	if targetLevel > MaxUpgradeLevel {
		return Business{}, ErrInvalidLevel
	}
	b := NewBusiness(kind, baseInvested, now)
	for lvl := uint8(1); lvl <= targetLevel; lvl++ {
		if err := b.ApplyUpgrade(lvl, costs[lvl-1]); err != nil {
			return Business{}, err
		}
	}
	return b, nil
}

func (b Business) Kind() BusinessKind { return b.kind }
func (b Business) BaseInvested() uint64 { return b.baseInvested }
func (b Business) TotalInvested() uint64 { return b.totalInvested }
func (b Business) DailyRateBps() uint16 { return b.dailyRateBps }
func (b Business) UpgradeLevel() uint8 { return b.upgradeLevel }
func (b Business) UpgradeHistory() [MaxUpgradeLevel]uint64 { return b.upgradeHistory }
func (b Business) TotalEarned() uint64 { return b.totalEarned }
func (b Business) CreatedAt() int64 { return b.createdAt }
func (b Business) PurchasedAt() CompactTime { return b.purchasedAt }
func (b Business) Active() bool { return b.active }

func (b Business) LastClaimAt() (CompactTime, bool) {
	return b.lastClaimAt, b.lastClaimAt.IsSet()
}

// ApplyUpgrade moves the business to newLevel, which must be exactly one above
// the current level. Nothing changes on error.
func (b *Business) ApplyUpgrade(newLevel uint8, cost uint64) error {
	if newLevel == 0 || newLevel > MaxUpgradeLevel || newLevel != b.upgradeLevel+1 {
		return fmt.Errorf("%w: %d -> %d", ErrInvalidLevel, b.upgradeLevel, newLevel)
	}
	total, err := checkedAdd(b.totalInvested, cost)
	if err != nil {
		return fmt.Errorf("upgrade to level %d: %w", newLevel, err)
	}
	b.upgradeHistory[newLevel-1] = cost
	b.upgradeLevel = newLevel
	b.totalInvested = total
	b.dailyRateBps = b.kind.BaseRateBps()
	return nil
}

// Upgraded returns a copy of b raised one level. b itself is untouched.
func (b Business) Upgraded(cost uint64) (Business, error) {
	next := b
	if err := next.ApplyUpgrade(b.upgradeLevel+1, cost); err != nil {
		return Business{}, err
	}
	return next, nil
}

// NextUpgradeCost reports the price of the next level; false once maxed.
func (b Business) NextUpgradeCost() (uint64, bool) {
	if b.upgradeLevel >= MaxUpgradeLevel {
		return 0, false
	}
	return mulDivSaturating(b.baseInvested, upgradeCostPercent[b.upgradeLevel], 100), true
}

func (b Business) CanUpgrade() bool {
	return b.upgradeLevel < MaxUpgradeLevel
}

// UpgradeCost is the checked price of moving from the current level to targetLevel.
func (b Business) UpgradeCost(targetLevel uint8) (uint64, error) {
	if targetLevel <= b.upgradeLevel || targetLevel > MaxUpgradeLevel {
		return 0, fmt.Errorf("%w: %d -> %d", ErrInvalidLevel, b.upgradeLevel, targetLevel)
	}
	v, ok := mulDiv(b.baseInvested, upgradeCostPercent[targetLevel-1], 100)
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}

// UpgradeTo applies targetLevel after checking the caller priced it correctly.
func (b *Business) UpgradeTo(targetLevel uint8, cost uint64) error {
	want, err := b.UpgradeCost(targetLevel)
	if err != nil {
		return err
	}
	if cost != want {
		return fmt.Errorf("%w: got %d want %d", ErrUpgradeCostMismatch, cost, want)
	}
	return b.ApplyUpgrade(targetLevel, cost)
}

// EarningsStartTime is where accrual resumes: the later of purchase and last claim.
func (b Business) EarningsStartTime() CompactTime {
	if b.lastClaimAt.IsSet() && b.lastClaimAt > b.purchasedAt {
		return b.lastClaimAt
	}
	return b.purchasedAt
}

func (b Business) DailyEarnings() uint64 {
	return mulDivSaturating(b.totalInvested, uint64(b.dailyRateBps), BasisPoints)
}

func (b Business) FullDailyEarningsIfActive() uint64 {
	if !b.active {
		return 0
	}
	return b.DailyEarnings()
}

// EarningsForPeriod pro-rates the daily yield over seconds, clamping instead of wrapping.
func (b Business) EarningsForPeriod(seconds int64) uint64 {
	if !b.active || seconds <= 0 {
		return 0
	}
	return mulDivSaturating(b.DailyEarnings(), uint64(seconds), uint64(SecondsPerDay))
}

func (b Business) ClaimableEarnings(now int64) uint64 {
	return b.EarningsForPeriod(now - b.EarningsStartTime().Unix())
}

// UpdateClaimTime stamps the last claim. It never moves the stamp backwards
// and never stamps a time before the purchase.
func (b *Business) UpdateClaimTime(now int64) {
	c := CompactFromUnix(now)
	if c < b.purchasedAt {
		return
	}
	if c > b.lastClaimAt {
		b.lastClaimAt = c
	}
}

func (b *Business) AddEarned(amount uint64) error {
	total, err := checkedAdd(b.totalEarned, amount)
	if err != nil {
		return err
	}
	b.totalEarned = total
	return nil
}

func (b *Business) addEarnedSaturating(amount uint64) {
	b.totalEarned = saturatingAdd(b.totalEarned, amount)
}

// RefundBasis is the capital a sale refunds against.
func (b Business) RefundBasis() uint64 {
	return b.totalInvested
}

func (b Business) DaysSinceCreated(now int64) uint64 {
	if now <= b.createdAt {
		return 0
	}
	return uint64((now - b.createdAt) / SecondsPerDay)
}

func (b Business) HealthCheck(now int64) error {
	if !b.kind.Valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidState, uint8(b.kind))
	}
	if b.upgradeLevel > MaxUpgradeLevel {
		return fmt.Errorf("%w: upgrade level %d", ErrInvalidState, b.upgradeLevel)
	}
	if b.dailyRateBps > MaxDailyRateBps {
		return fmt.Errorf("%w: daily rate %d bps", ErrInvalidState, b.dailyRateBps)
	}
	want := b.baseInvested
	for i := uint8(0); i < b.upgradeLevel; i++ {
		sum, err := checkedAdd(want, b.upgradeHistory[i])
		if err != nil {
			return fmt.Errorf("%w: upgrade history overflows", ErrInvalidState)
		}
		want = sum
	}
	if want != b.totalInvested {
		return fmt.Errorf("%w: total invested %d, expected %d", ErrInvalidState, b.totalInvested, want)
	}
	if b.createdAt > now {
		return fmt.Errorf("%w: created in the future", ErrInvalidState)
	}
	if b.purchasedAt.Unix() > now {
		return fmt.Errorf("%w: purchased in the future", ErrInvalidState)
	}
	if b.lastClaimAt.IsSet() {
		if b.lastClaimAt < b.purchasedAt {
			return fmt.Errorf("%w: last claim before purchase", ErrInvalidState)
		}
		if b.lastClaimAt.Unix() > now {
			return fmt.Errorf("%w: last claim in the future", ErrInvalidState)
		}
	}
	return nil
}
