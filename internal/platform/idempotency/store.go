package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL bounds how long a placement response can be replayed.
const DefaultTTL = 24 * time.Hour

// State is the outcome of reserving a key.
type State int

const (
	// StateNew means the caller owns the key and must run the handler.
	StateNew State = iota
	// StateReplay means a stored response exists for the key.
	StateReplay
	// StateInFlight means another request holds the key and has not finished.
	StateInFlight
)

// ErrKeyReused is returned when a key is presented with a different request body or route.
var ErrKeyReused = errors.New("idempotency: key reused for a different request")

// Record is the persisted reservation and, once completed, the response to replay.
type Record struct {
	Scope       string
	Fingerprint string
	Completed   bool
	Status      int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store persists reservations. Scope is the caller-qualified key.
type Store interface {
	Reserve(ctx context.Context, scope, fingerprint string, now time.Time, ttl time.Duration) (Record, State, error)
	Complete(ctx context.Context, record Record) error
	Release(ctx context.Context, scope string) error
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

func documentID(scope string) string {
	sum := sha256.Sum256([]byte(scope))
	return hex.EncodeToString(sum[:])
}

func classify(existing Record, fingerprint string) (State, error) {
	if existing.Fingerprint != fingerprint {
		return 0, ErrKeyReused
	}
	if existing.Completed {
		return StateReplay, nil
	}
	return StateInFlight, nil
}
