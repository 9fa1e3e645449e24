package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"racket/internal/syncq"
)

// IsAPIError reports whether err came back from the API rather than the network.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// ReplayOutcome maps a replay error onto the queue's bookkeeping.
func ReplayOutcome(err error) syncq.Outcome {
	if err == nil {
		return syncq.Replayed
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return syncq.Retry
	}
	switch {
	case apiErr.Status == http.StatusConflict && strings.Contains(apiErr.Message, "duplicate idempotency key"):
		return syncq.AlreadyApplied
	case apiErr.Status == http.StatusConflict && strings.Contains(apiErr.Message, "transaction conflict"):
		return syncq.Retry
	case apiErr.Status >= 500:
		return syncq.Retry
	default:
		return syncq.Rejected
	}
}

// Replayer sends queued commands with the caller's access token.
func (c *Client) Replayer(accessToken string) func(ctx context.Context, cmd syncq.Command) (syncq.Outcome, error) {
	return func(ctx context.Context, cmd syncq.Command) (syncq.Outcome, error) {
		_, err := c.Do(ctx, cmd.Method, cmd.Path, accessToken, cmd.Body, cmd.IdempotencyKey)
		return ReplayOutcome(err), err
	}
}
