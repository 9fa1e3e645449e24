package syncq

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushAndLoad(t *testing.T) {
	q := Default(t.TempDir())
	got, err := q.Load()
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, q.Push(Command{Label: "claim", Method: "POST", Path: "/v1/claims", IdempotencyKey: "k1"}))
	require.NoError(t, q.Push(Command{Label: "buy", Method: "POST", Path: "/v1/businesses", Body: map[string]any{"kind": "kiosk"}, IdempotencyKey: "k2"}))

	got, err = q.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "k1", got[0].IdempotencyKey)
	require.Equal(t, "kiosk", got[1].Body["kind"])
	require.False(t, got[0].QueuedAt.IsZero())
}

func TestDrainKeepsRetries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "queue.json")
	q := Open(path)
	for _, key := range []string{"ok", "dup", "offline", "bad"} {
		require.NoError(t, q.Push(Command{Method: "POST", Path: "/v1/claims", IdempotencyKey: key}))
	}

	results, err := q.Drain(ctx, func(_ context.Context, cmd Command) (Outcome, error) {
		switch cmd.IdempotencyKey {
		case "ok":
			return Replayed, nil
		case "dup":
			return AlreadyApplied, errors.New("duplicate")
		case "offline":
			return Retry, errors.New("connection refused")
		default:
			return Rejected, errors.New("bad request")
		}
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	left, err := q.Load()
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "offline", left[0].IdempotencyKey)
	require.Equal(t, 1, left[0].Attempts)

	_, err = q.Drain(ctx, func(context.Context, Command) (Outcome, error) { return Replayed, nil })
	require.NoError(t, err)
	left, err = q.Load()
	require.NoError(t, err)
	require.Empty(t, left)
	require.NoFileExists(t, path)
}
