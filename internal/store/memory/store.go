// Package memory is a process-local game.Store for tests and single-node demos.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"racket/internal/game"
)

var _ game.Store = (*Store)(nil)

type idemKey struct {
	owner game.Owner
	key   string
}

// Store keeps encoded ledgers so callers never share state with it.
type Store struct {
	mu        sync.Mutex
	players   map[game.Owner][]byte
	idem      map[idemKey]string
	transfers []game.Transfer
	stats     game.GlobalStats
}

func New() *Store {
	return &Store{
		players: make(map[game.Owner][]byte),
		idem:    make(map[idemKey]string),
	}
}

// WithTx runs fn under the store lock and applies its writes only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx game.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:       s,
		players: make(map[game.Owner][]byte),
		idem:    make(map[idemKey]string),
		stats:   s.stats,
	}
	if err := fn(tx); err != nil {
		return err
	}
	for owner, raw := range tx.players {
		s.players[owner] = raw
	}
	for k, action := range tx.idem {
		s.idem[k] = action
	}
	s.transfers = append(s.transfers, tx.transfers...)
	if tx.statsDirty {
		s.stats = tx.stats
	}
	return nil
}

func (s *Store) LoadPlayer(_ context.Context, owner game.Owner) (*game.Player, error) {
	s.mu.Lock()
	raw, ok := s.players[owner]
	s.mu.Unlock()
	if !ok {
		return nil, game.ErrPlayerNotFound
	}
	return game.DecodePlayer(raw)
}

func (s *Store) ListOwners(_ context.Context, after game.Owner, limit int) ([]game.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Owner, 0, len(s.players))
	for owner := range s.players {
		if bytes.Compare(owner[:], after[:]) > 0 {
			out = append(out, owner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GlobalStats(_ context.Context) (game.GlobalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

// Transfers returns a copy of every committed transfer.
func (s *Store) Transfers() []game.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]game.Transfer(nil), s.transfers...)
}

// SeedStats overwrites the global counters.
func (s *Store) SeedStats(stats game.GlobalStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func (s *Store) Close() error {
	return nil
}

type memTx struct {
	s          *Store
	players    map[game.Owner][]byte
	idem       map[idemKey]string
	transfers  []game.Transfer
	stats      game.GlobalStats
	statsDirty bool
}

func (tx *memTx) ClaimIdempotency(_ context.Context, owner game.Owner, key, action string) error {
	key, err := game.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}
	k := idemKey{owner: owner, key: key}
	if _, ok := tx.s.idem[k]; ok {
		return game.ErrDuplicateIdempotency
	}
	if _, ok := tx.idem[k]; ok {
		return game.ErrDuplicateIdempotency
	}
	tx.idem[k] = action
	return nil
}

func (tx *memTx) lookup(owner game.Owner) ([]byte, bool) {
	if raw, ok := tx.players[owner]; ok {
		return raw, true
	}
	raw, ok := tx.s.players[owner]
	return raw, ok
}

func (tx *memTx) LockPlayer(_ context.Context, owner game.Owner) (*game.Player, error) {
	raw, ok := tx.lookup(owner)
	if !ok {
		return nil, game.ErrPlayerNotFound
	}
	return game.DecodePlayer(raw)
}

func (tx *memTx) InsertPlayer(_ context.Context, p *game.Player) error {
	if _, ok := tx.lookup(p.Owner()); ok {
		return game.ErrPlayerExists
	}
	return tx.put(p)
}

func (tx *memTx) SavePlayer(_ context.Context, p *game.Player) error {
	if _, ok := tx.lookup(p.Owner()); !ok {
		return game.ErrPlayerNotFound
	}
	return tx.put(p)
}

func (tx *memTx) put(p *game.Player) error {
	raw, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	tx.players[p.Owner()] = raw
	return nil
}

func (tx *memTx) AppendTransfers(_ context.Context, transfers []game.Transfer) error {
	tx.transfers = append(tx.transfers, transfers...)
	return nil
}

func (tx *memTx) LockStats(_ context.Context) (game.GlobalStats, error) {
	return tx.stats, nil
}

func (tx *memTx) SaveStats(_ context.Context, stats game.GlobalStats) error {
	tx.stats = stats
	tx.statsDirty = true
	return nil
}
