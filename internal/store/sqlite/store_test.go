package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	msqlite "modernc.org/sqlite"

	"racket/internal/game"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "racket.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testOwner(b byte) game.Owner {
	var o game.Owner
	for i := range o {
		o[i] = b
	}
	return o
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "racket.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestPlayerRoundTripThroughTx(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	o := testOwner(7)
	p := game.NewPlayer(o, 1_700_000_000)

	err := store.WithTx(ctx, func(tx game.Tx) error {
		return tx.InsertPlayer(ctx, p)
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx game.Tx) error {
		return tx.InsertPlayer(ctx, p)
	})
	require.ErrorIs(t, err, game.ErrPlayerExists)

	loaded, err := store.LoadPlayer(ctx, o)
	require.NoError(t, err)
	want, err := p.MarshalBinary()
	require.NoError(t, err)
	got, err := loaded.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = store.LoadPlayer(ctx, testOwner(8))
	require.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestSaveUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	err := store.WithTx(ctx, func(tx game.Tx) error {
		return tx.SavePlayer(ctx, game.NewPlayer(testOwner(3), 1_700_000_000))
	})
	require.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestFailedTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	o := testOwner(9)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx game.Tx) error {
		if err := tx.ClaimIdempotency(ctx, o, "k-1", "create"); err != nil {
			return err
		}
		if err := tx.InsertPlayer(ctx, game.NewPlayer(o, 1_700_000_000)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.LoadPlayer(ctx, o)
	require.ErrorIs(t, err, game.ErrPlayerNotFound)

	err = store.WithTx(ctx, func(tx game.Tx) error {
		return tx.ClaimIdempotency(ctx, o, "k-1", "create")
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx game.Tx) error {
		return tx.ClaimIdempotency(ctx, o, "k-1", "create")
	})
	require.ErrorIs(t, err, game.ErrDuplicateIdempotency)
}

func TestStatsAndTransfers(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	o := testOwner(4)
	at := time.UnixMilli(1_700_000_000_000).UTC()
	group := uuid.New()

	stats, err := store.GlobalStats(ctx)
	require.NoError(t, err)
	require.Equal(t, game.GlobalStats{}, stats)

	err = store.WithTx(ctx, func(tx game.Tx) error {
		current, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}
		next := current.Apply(game.StatsDelta{Players: 1, Invested: 18_000_000_000_000_000_000, FeesCollected: 5}, at)
		if err := tx.SaveStats(ctx, next); err != nil {
			return err
		}
		return tx.AppendTransfers(ctx, []game.Transfer{
			{GroupID: group, Owner: o, From: game.AccountPlayer, To: game.AccountTreasury, Amount: 100, Reason: "business_purchase", At: at},
			{GroupID: group, Owner: o, From: game.AccountPlayer, To: game.AccountFees, Amount: 5, Reason: "slot_fee", At: at},
		})
	})
	require.NoError(t, err)

	stats, err = store.GlobalStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Players)
	require.Equal(t, uint64(18_000_000_000_000_000_000), stats.Invested)
	require.Equal(t, uint64(5), stats.FeesCollected)
	require.True(t, stats.UpdatedAt.Equal(at))

	transfers, err := store.Transfers(ctx, o)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	require.Equal(t, group, transfers[0].GroupID)
	require.Equal(t, uint64(100), transfers[0].Amount)
	require.Equal(t, "slot_fee", transfers[1].Reason)
	require.Equal(t, game.AccountFees, transfers[1].To)
}

func TestListOwnersPages(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	for _, b := range []byte{5, 1, 3} {
		p := game.NewPlayer(testOwner(b), 1_700_000_000)
		require.NoError(t, store.WithTx(ctx, func(tx game.Tx) error { return tx.InsertPlayer(ctx, p) }))
	}

	page, err := store.ListOwners(ctx, game.Owner{}, 2)
	require.NoError(t, err)
	require.Equal(t, []game.Owner{testOwner(1), testOwner(3)}, page)

	page, err = store.ListOwners(ctx, page[len(page)-1], 2)
	require.NoError(t, err)
	require.Equal(t, []game.Owner{testOwner(5)}, page)

	all, err := store.ListOwners(ctx, game.Owner{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestServiceCycleOnSQLite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Unix(1_700_000_000, 0).UTC()
	svc := game.NewService(store, game.DefaultRules(), nil, game.WithClock(func() time.Time { return now }))
	o := testOwner(2)

	_, err := svc.CreatePlayer(ctx, game.CreatePlayerInput{Owner: o, IdempotencyKey: uuid.NewString()})
	require.NoError(t, err)
	bought, err := svc.BuyBusiness(ctx, game.BuyBusinessInput{
		Owner: o, Kind: game.KindKiosk, SlotIndex: 0, IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, game.KindKiosk.BaseCost(), bought.Price)

	now = now.Add(24 * time.Hour)
	claimed, err := svc.Claim(ctx, game.OwnerInput{Owner: o, IdempotencyKey: uuid.NewString()})
	require.NoError(t, err)
	require.Positive(t, claimed.Net)

	stats, err := svc.GlobalStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Players)
	require.Equal(t, int64(1), stats.Businesses)
	require.Equal(t, game.KindKiosk.BaseCost(), stats.Invested)
	require.Equal(t, claimed.Gross, stats.Withdrawn)
}

func TestClassifyWrapsBusy(t *testing.T) {
	require.False(t, isBusy(nil))
	require.True(t, isBusy(fmt.Errorf("exec: database is locked (5) (SQLITE_BUSY)")))
	require.False(t, isBusy(errors.New("no such table: players")))

	err := classify("commit tx", errors.New("database is locked"))
	require.ErrorIs(t, err, game.ErrSerialization)

	var sqliteErr *msqlite.Error
	require.False(t, errors.As(classify("x", errors.New("plain")), &sqliteErr))
}
