// Package sqlite provides a SQLite-backed game.Store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"racket/internal/game"
	"racket/internal/store/sqlite/migrations"
	"racket/internal/store/sqlmigrate"
)

var _ game.Store = (*Store)(nil)

// Store persists ledgers in SQLite. Writers take the database lock up front.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func applyMigrations(sqlDB *sql.DB) error {
	all, err := sqlmigrate.Load(migrations.FS)
	if err != nil {
		return err
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	for _, m := range all {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, m.Name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}
		if count > 0 {
			continue
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(m.Up); err != nil && !sqlmigrate.IsAlreadyExists(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, m.Name, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(tx game.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{sqlTx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

func (s *Store) LoadPlayer(ctx context.Context, owner game.Owner) (*game.Player, error) {
	return loadPlayer(ctx, s.sqlDB, owner)
}

func (s *Store) ListOwners(ctx context.Context, after game.Owner, limit int) ([]game.Owner, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT owner FROM players WHERE owner > ? ORDER BY owner LIMIT ?`, after[:], limit)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var out []game.Owner
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		var owner game.Owner
		if len(raw) != len(owner) {
			return nil, fmt.Errorf("owner column has %d bytes", len(raw))
		}
		copy(owner[:], raw)
		out = append(out, owner)
	}
	return out, rows.Err()
}

func (s *Store) GlobalStats(ctx context.Context) (game.GlobalStats, error) {
	return loadStats(ctx, s.sqlDB)
}

// Transfers returns the recorded transfers for owner, oldest first.
func (s *Store) Transfers(ctx context.Context, owner game.Owner) ([]game.Transfer, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT group_id, from_account, to_account, amount, reason, created_at
FROM transfers WHERE owner = ? ORDER BY id`, owner[:])
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []game.Transfer
	for rows.Next() {
		var (
			groupID, from, to, amount, reason string
			createdAt                         int64
		)
		if err := rows.Scan(&groupID, &from, &to, &amount, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		gid, err := uuid.Parse(groupID)
		if err != nil {
			return nil, fmt.Errorf("parse group id: %w", err)
		}
		units, err := parseUnits(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, game.Transfer{
			GroupID: gid,
			Owner:   owner,
			From:    game.Account(from),
			To:      game.Account(to),
			Amount:  units,
			Reason:  reason,
			At:      fromMillis(createdAt),
		})
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadPlayer(ctx context.Context, q queryer, owner game.Owner) (*game.Player, error) {
	var record []byte
	err := q.QueryRowContext(ctx, `SELECT record FROM players WHERE owner = ?`, owner[:]).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrPlayerNotFound
	}
	if err != nil {
		return nil, classify("load player", err)
	}
	return game.DecodePlayer(record)
}

func loadStats(ctx context.Context, q queryer) (game.GlobalStats, error) {
	var (
		stats                         game.GlobalStats
		invested, withdrawn, feesText string
		updatedAt                     int64
	)
	err := q.QueryRowContext(ctx, `
SELECT total_players, total_businesses, total_invested, total_withdrawn, fees_collected, updated_at
FROM global_stats WHERE id = 1`).Scan(&stats.Players, &stats.Businesses, &invested, &withdrawn, &feesText, &updatedAt)
	if err != nil {
		return game.GlobalStats{}, classify("load stats", err)
	}
	if stats.Invested, err = parseUnits(invested); err != nil {
		return game.GlobalStats{}, err
	}
	if stats.Withdrawn, err = parseUnits(withdrawn); err != nil {
		return game.GlobalStats{}, err
	}
	if stats.FeesCollected, err = parseUnits(feesText); err != nil {
		return game.GlobalStats{}, err
	}
	if updatedAt > 0 {
		stats.UpdatedAt = fromMillis(updatedAt)
	}
	return stats, nil
}

func formatUnits(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUnits(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse units %q: %w", s, err)
	}
	return v, nil
}

// classify wraps lock contention as game.ErrSerialization so the service retries.
func classify(op string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %w", op, game.ErrSerialization, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked")
}

type tx struct {
	sqlTx *sql.Tx
}

func (t *tx) ClaimIdempotency(ctx context.Context, owner game.Owner, key, action string) error {
	key, err := game.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}
	res, err := t.sqlTx.ExecContext(ctx,
		`INSERT OR IGNORE INTO idempotency_keys (owner, key, action, created_at) VALUES (?, ?, ?, ?)`,
		owner[:], key, action, toMillis(time.Now()))
	if err != nil {
		return classify("claim idempotency", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim idempotency: %w", err)
	}
	if n == 0 {
		return game.ErrDuplicateIdempotency
	}
	return nil
}

// LockPlayer reads the ledger; the immediate transaction already holds the write lock.
func (t *tx) LockPlayer(ctx context.Context, owner game.Owner) (*game.Player, error) {
	return loadPlayer(ctx, t.sqlTx, owner)
}

func (t *tx) InsertPlayer(ctx context.Context, p *game.Player) error {
	record, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	owner := p.Owner()
	now := toMillis(time.Now())
	res, err := t.sqlTx.ExecContext(ctx, `
INSERT OR IGNORE INTO players (owner, record, entitled, active_businesses, total_earned, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		owner[:], record, p.Entitled(), p.ActiveBusinesses(), formatUnits(p.TotalEarned()), now, now)
	if err != nil {
		return classify("insert player", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	if n == 0 {
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
	res, err := t.sqlTx.ExecContext(ctx, `
UPDATE players
SET record = ?, entitled = ?, active_businesses = ?, total_earned = ?, updated_at = ?
WHERE owner = ?`,
		record, p.Entitled(), p.ActiveBusinesses(), formatUnits(p.TotalEarned()), toMillis(time.Now()), owner[:])
	if err != nil {
		return classify("save player", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	if n == 0 {
		return game.ErrPlayerNotFound
	}
	return nil
}

func (t *tx) AppendTransfers(ctx context.Context, transfers []game.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	stmt, err := t.sqlTx.PrepareContext(ctx, `
INSERT INTO transfers (group_id, owner, from_account, to_account, amount, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return classify("prepare transfers", err)
	}
	defer stmt.Close()
	for _, tr := range transfers {
		if _, err := stmt.ExecContext(ctx,
			tr.GroupID.String(), tr.Owner[:], string(tr.From), string(tr.To),
			formatUnits(tr.Amount), tr.Reason, toMillis(tr.At)); err != nil {
			return classify("append transfer", err)
		}
	}
	return nil
}

func (t *tx) LockStats(ctx context.Context) (game.GlobalStats, error) {
	return loadStats(ctx, t.sqlTx)
}

func (t *tx) SaveStats(ctx context.Context, stats game.GlobalStats) error {
	_, err := t.sqlTx.ExecContext(ctx, `
UPDATE global_stats
SET total_players = ?, total_businesses = ?, total_invested = ?, total_withdrawn = ?, fees_collected = ?, updated_at = ?
WHERE id = 1`,
		stats.Players, stats.Businesses, formatUnits(stats.Invested), formatUnits(stats.Withdrawn),
		formatUnits(stats.FeesCollected), toMillis(stats.UpdatedAt))
	if err != nil {
		return classify("save stats", err)
	}
	return nil
}
