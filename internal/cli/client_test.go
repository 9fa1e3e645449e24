package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"racket/internal/auth"
	"racket/internal/game"
	"racket/internal/syncq"
)

func TestClientSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/businesses", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "parlor", body["kind"])
		require.NotContains(t, body, "slot_index")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(game.BuyBusinessResult{SlotIndex: 3, Kind: "parlor", Price: 500})
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL+"/").Buy(context.Background(), "tok", BuyBody("parlor", -1, 0), "idem-1")
	require.NoError(t, err)
	require.Equal(t, 3, out.SlotIndex)
	require.Equal(t, uint64(500), out.Price)
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"duplicate idempotency key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Claim(context.Background(), "tok", "k")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "duplicate idempotency key", apiErr.Message)
	require.True(t, IsAPIError(err))
	require.Equal(t, syncq.AlreadyApplied, ReplayOutcome(err))
}

func TestReplayOutcome(t *testing.T) {
	require.Equal(t, syncq.Replayed, ReplayOutcome(nil))
	require.Equal(t, syncq.Retry, ReplayOutcome(errors.New("dial tcp: connection refused")))
	require.Equal(t, syncq.Retry, ReplayOutcome(&APIError{Status: http.StatusServiceUnavailable}))
	require.Equal(t, syncq.Retry, ReplayOutcome(&APIError{Status: http.StatusConflict, Message: "transaction conflict, please retry"}))
	require.Equal(t, syncq.Rejected, ReplayOutcome(&APIError{Status: http.StatusConflict, Message: "slot already occupied"}))
	require.Equal(t, syncq.Rejected, ReplayOutcome(&APIError{Status: http.StatusBadRequest}))
}

func TestSessionFrom(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := SessionFrom(auth.Session{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresIn:    3600,
		User:         auth.SupabaseUser{ID: "u1", Email: "u@x.y"},
	}, now)
	require.Equal(t, auth.OwnerKey("u1").String(), s.Owner)
	require.False(t, s.NeedsRefresh(now))
	require.True(t, s.NeedsRefresh(now.Add(59*time.Minute+30*time.Second)))
	require.False(t, Session{AccessToken: "a"}.NeedsRefresh(now))
}

func TestSessionFileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := LoadSession()
	require.Error(t, err)

	require.NoError(t, SaveSession(Session{AccessToken: "a", Email: "u@x.y"}))
	s, err := LoadSession()
	require.NoError(t, err)
	require.Equal(t, "u@x.y", s.Email)

	require.NoError(t, ClearSession())
	require.NoError(t, ClearSession())
	_, err = LoadSession()
	require.Error(t, err)
}
