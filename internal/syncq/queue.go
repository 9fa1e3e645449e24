// Package syncq keeps writes that could not reach the API so they can be replayed later.
package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Command struct {
	Label          string         `json:"label"`
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
	Attempts       int            `json:"attempts"`
}

// Queue is a JSON file of pending commands, oldest first.
type Queue struct {
	mu   sync.Mutex
	path string
}

func Open(path string) *Queue {
	return &Queue{path: path}
}

// Default opens queue.json under dir.
func Default(dir string) *Queue {
	return Open(filepath.Join(dir, "queue.json"))
}

func (q *Queue) Load() ([]Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

func (q *Queue) load() ([]Command, error) {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queue) save(commands []Command) error {
	if len(commands) == 0 {
		if err := os.Remove(q.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o700); err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}

func (q *Queue) Push(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	commands, err := q.load()
	if err != nil {
		return err
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	return q.save(append(commands, cmd))
}

// Outcome classifies one replay attempt.
type Outcome int

const (
	Replayed Outcome = iota
	// AlreadyApplied means the server had seen the idempotency key.
	AlreadyApplied
	Retry
	Rejected
)

type Result struct {
	Command Command
	Outcome Outcome
	Err     error
}

// Drain replays every command in order through send. Commands whose outcome is
// Retry stay queued with Attempts incremented; all others are removed.
func (q *Queue) Drain(ctx context.Context, send func(ctx context.Context, cmd Command) (Outcome, error)) ([]Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	commands, err := q.load()
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(commands))
	remaining := make([]Command, 0, len(commands))
	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			remaining = append(remaining, cmd)
			continue
		}
		outcome, err := send(ctx, cmd)
		if outcome == Retry {
			cmd.Attempts++
			remaining = append(remaining, cmd)
		}
		results = append(results, Result{Command: cmd, Outcome: outcome, Err: err})
	}
	if err := q.save(remaining); err != nil {
		return results, err
	}
	return results, nil
}
