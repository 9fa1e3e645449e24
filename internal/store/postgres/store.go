// Package postgres provides the production game.Store on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"racket/internal/game"
	"racket/internal/store/postgres/migrations"
	"racket/internal/store/sqlmigrate"
)

var _ game.Store = (*Store)(nil)

// Store runs every write in a serializable transaction.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies embedded migrations that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	all, err := sqlmigrate.Load(migrations.FS)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `
CREATE SCHEMA IF NOT EXISTS racket;
CREATE TABLE IF NOT EXISTS racket.schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	for _, m := range all {
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m sqlmigrate.Migration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Name, err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `INSERT INTO racket.schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, m.Name)
	if err != nil {
		return fmt.Errorf("record migration %s: %w", m.Name, err)
	}
	if cmd.RowsAffected() == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, m.Up); err != nil && !sqlmigrate.IsAlreadyExists(err) {
		return fmt.Errorf("exec migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Name, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx game.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify("begin tx", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(&tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

func (s *Store) LoadPlayer(ctx context.Context, owner game.Owner) (*game.Player, error) {
	return loadPlayer(ctx, s.pool, owner, "")
}

func (s *Store) ListOwners(ctx context.Context, after game.Owner, limit int) ([]game.Owner, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT owner FROM racket.players
		WHERE owner > $1
		ORDER BY owner
		LIMIT $2
	`, after[:], limit)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	out := make([]game.Owner, 0, len(raw))
	for _, b := range raw {
		owner, err := ownerFromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, owner)
	}
	return out, nil
}

func (s *Store) GlobalStats(ctx context.Context) (game.GlobalStats, error) {
	return loadStats(ctx, s.pool, "")
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadPlayer(ctx context.Context, q rowQuerier, owner game.Owner, lock string) (*game.Player, error) {
	var record []byte
	err := q.QueryRow(ctx, `SELECT record FROM racket.players WHERE owner = $1 `+lock, owner[:]).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrPlayerNotFound
	}
	if err != nil {
		return nil, classify("load player", err)
	}
	return game.DecodePlayer(record)
}

func loadStats(ctx context.Context, q rowQuerier, lock string) (game.GlobalStats, error) {
	var (
		stats                         game.GlobalStats
		invested, withdrawn, feesText string
	)
	err := q.QueryRow(ctx, `
		SELECT total_players, total_businesses, total_invested::text, total_withdrawn::text, fees_collected::text, updated_at
		FROM racket.global_stats
		WHERE id = 1 `+lock,
	).Scan(&stats.Players, &stats.Businesses, &invested, &withdrawn, &feesText, &stats.UpdatedAt)
	if err != nil {
		return game.GlobalStats{}, classify("load stats", err)
	}
	if stats.Invested, err = parseNumeric(invested); err != nil {
		return game.GlobalStats{}, err
	}
	if stats.Withdrawn, err = parseNumeric(withdrawn); err != nil {
		return game.GlobalStats{}, err
	}
	if stats.FeesCollected, err = parseNumeric(feesText); err != nil {
		return game.GlobalStats{}, err
	}
	stats.UpdatedAt = stats.UpdatedAt.UTC()
	return stats, nil
}

func ownerFromBytes(b []byte) (game.Owner, error) {
	var owner game.Owner
	if len(b) != len(owner) {
		return owner, fmt.Errorf("owner column has %d bytes", len(b))
	}
	copy(owner[:], b)
	return owner, nil
}

func formatNumeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseNumeric(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v, nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func classify(op string, err error) error {
	if isSerializationError(err) {
		return fmt.Errorf("%s: %w: %w", op, game.ErrSerialization, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) ClaimIdempotency(ctx context.Context, owner game.Owner, key, action string) error {
	key, err := game.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}
	cmd, err := t.tx.Exec(ctx, `
		INSERT INTO racket.idempotency_keys (owner, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (owner, key) DO NOTHING
	`, owner[:], key, action)
	if err != nil {
		return classify("claim idempotency", err)
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrDuplicateIdempotency
	}
	return nil
}

func (t *tx) LockPlayer(ctx context.Context, owner game.Owner) (*game.Player, error) {
	return loadPlayer(ctx, t.tx, owner, "FOR UPDATE")
}

func (t *tx) InsertPlayer(ctx context.Context, p *game.Player) error {
	record, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	owner := p.Owner()
	cmd, err := t.tx.Exec(ctx, `
		INSERT INTO racket.players (owner, record, entitled, active_businesses, total_earned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, now())
		ON CONFLICT (owner) DO NOTHING
	`, owner[:], record, p.Entitled(), p.ActiveBusinesses(), formatNumeric(p.TotalEarned()), p.CreatedAt().Time())
	if err != nil {
		return classify("insert player", err)
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrPlayerExists
	}
	return nil
}

func (t *tx) SavePlayer(ctx context.Context, p *game.Player) error {
	record, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	owner := p.Owner()
	cmd, err := t.tx.Exec(ctx, `
		UPDATE racket.players
		SET record = $2, entitled = $3, active_businesses = $4, total_earned = $5::numeric, updated_at = now()
		WHERE owner = $1
	`, owner[:], record, p.Entitled(), p.ActiveBusinesses(), formatNumeric(p.TotalEarned()))
	if err != nil {
		return classify("save player", err)
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrPlayerNotFound
	}
	return nil
}

func (t *tx) AppendTransfers(ctx context.Context, transfers []game.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tr := range transfers {
		batch.Queue(`
			INSERT INTO racket.transfers (group_id, owner, from_account, to_account, amount, reason, created_at)
			VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6, $7)
		`, tr.GroupID.String(), tr.Owner[:], string(tr.From), string(tr.To), formatNumeric(tr.Amount), tr.Reason, tr.At)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return classify("append transfers", err)
	}
	return nil
}

func (t *tx) LockStats(ctx context.Context) (game.GlobalStats, error) {
	return loadStats(ctx, t.tx, "FOR UPDATE")
}

func (t *tx) SaveStats(ctx context.Context, stats game.GlobalStats) error {
	updatedAt := stats.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE racket.global_stats
		SET total_players = $1,
		    total_businesses = $2,
		    total_invested = $3::numeric,
		    total_withdrawn = $4::numeric,
		    fees_collected = $5::numeric,
		    updated_at = $6
		WHERE id = 1
	`, stats.Players, stats.Businesses, formatNumeric(stats.Invested), formatNumeric(stats.Withdrawn),
		formatNumeric(stats.FeesCollected), updatedAt)
	if err != nil {
		return classify("save stats", err)
	}
	return nil
}
