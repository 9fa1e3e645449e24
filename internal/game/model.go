package game

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

const (
	UnitsPerCoin = uint64(1_000_000_000)

	SlotCount       = 9
	MaxUpgradeLevel = 3

	SecondsPerDay   = int64(86_400)
	ClaimCooldown   = SecondsPerDay
	ClaimFeePercent = uint64(2)

	BasisPoints     = uint64(10_000)
	MaxDailyRateBps = uint16(10_000)
)

var (
	ErrInvalidLevel     = errors.New("invalid upgrade level")
	ErrOverflow         = errors.New("arithmetic overflow")
	ErrInvalidIndex     = errors.New("invalid slot index")
	ErrSlotOccupied     = errors.New("slot already occupied")
	ErrSlotEmpty        = errors.New("slot is empty")
	ErrAlreadyPaid      = errors.New("slot already paid")
	ErrClaimTooEarly    = errors.New("claim cooldown has not elapsed")
	ErrNoEarnings       = errors.New("no earnings to claim")
	ErrAlreadyPurchased = errors.New("auto-accrual already purchased")
	ErrInvalidState     = errors.New("invalid ledger state")

	ErrPlayerExists         = errors.New("player already exists")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrUnknownKind          = errors.New("unknown business kind")
	ErrUpgradeCostMismatch  = errors.New("upgrade cost mismatch")
	ErrNoFreeSlot           = errors.New("no free slot")
	ErrTreasuryInsufficient = errors.New("treasury cannot cover payout")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, please retry")
	ErrSerialization        = errors.New("serialization failure")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrLayout               = errors.New("malformed player record")
)

// Owner identifies a player ledger. It is the 32-byte key the ledger is stored under.
type Owner [32]byte

func ParseOwner(s string) (Owner, error) {
	var o Owner
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return o, fmt.Errorf("parse owner: %w", err)
	}
	if len(raw) != len(o) {
		return o, fmt.Errorf("parse owner: want %d bytes, got %d", len(o), len(raw))
	}
	copy(o[:], raw)
	return o, nil
}

func (o Owner) String() string {
	return hex.EncodeToString(o[:])
}

func (o Owner) IsZero() bool {
	return o == Owner{}
}

func (o Owner) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Owner) UnmarshalText(text []byte) error {
	parsed, err := ParseOwner(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// mulDiv computes a*b/d with a wide intermediate. ok is false when d is zero
// or the quotient does not fit in 64 bits.
func mulDiv(a, b, d uint64) (uint64, bool) {
	if d == 0 {
		return 0, false
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	v.Quo(v, new(big.Int).SetUint64(d))
	if !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

func mulDivSaturating(a, b, d uint64) uint64 {
	v, ok := mulDiv(a, b, d)
	if !ok {
		return math.MaxUint64
	}
	return v
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}
