package game

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

type Account string

const (
	AccountPlayer   Account = "player"
	AccountTreasury Account = "treasury"
	AccountFees     Account = "fees"
)

// Transfer is one recorded fund movement. Transfers from the same operation
// share a GroupID.
type Transfer struct {
	GroupID uuid.UUID `json:"group_id"`
	Owner   Owner     `json:"owner"`
	From    Account   `json:"from"`
	To      Account   `json:"to"`
	Amount  uint64    `json:"amount_units"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

type StatsDelta struct {
	Players       int64
	Businesses    int64
	Invested      uint64
	Withdrawn     uint64
	FeesCollected uint64
}

type GlobalStats struct {
	Players       int64     `json:"total_players"`
	Businesses    int64     `json:"total_businesses"`
	Invested      uint64    `json:"total_invested_units"`
	Withdrawn     uint64    `json:"total_withdrawn_units"`
	FeesCollected uint64    `json:"fees_collected_units"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (g GlobalStats) TreasuryBalance() uint64 {
	if g.Withdrawn >= g.Invested {
		return 0
	}
	return g.Invested - g.Withdrawn
}

// Apply folds d into g. Counters saturate instead of wrapping.
func (g GlobalStats) Apply(d StatsDelta, at time.Time) GlobalStats {
	g.Players = addSigned(g.Players, d.Players)
	g.Businesses = addSigned(g.Businesses, d.Businesses)
	g.Invested = saturatingAdd(g.Invested, d.Invested)
	g.Withdrawn = saturatingAdd(g.Withdrawn, d.Withdrawn)
	g.FeesCollected = saturatingAdd(g.FeesCollected, d.FeesCollected)
	g.UpdatedAt = at
	return g
}

func addSigned(a, b int64) int64 {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt64
	case sum < 0:
		return 0
	}
	return sum
}

// Store persists player ledgers and the bookkeeping around them.
// Implementations must make WithTx atomic and serialize writers per owner.
// A retryable conflict is reported by wrapping ErrSerialization.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	LoadPlayer(ctx context.Context, owner Owner) (*Player, error)
	ListOwners(ctx context.Context, after Owner, limit int) ([]Owner, error)
	GlobalStats(ctx context.Context) (GlobalStats, error)
	Close() error
}

type Tx interface {
	ClaimIdempotency(ctx context.Context, owner Owner, key, action string) error
	LockPlayer(ctx context.Context, owner Owner) (*Player, error)
	InsertPlayer(ctx context.Context, p *Player) error
	SavePlayer(ctx context.Context, p *Player) error
	AppendTransfers(ctx context.Context, transfers []Transfer) error
	LockStats(ctx context.Context) (GlobalStats, error)
	SaveStats(ctx context.Context, stats GlobalStats) error
}
