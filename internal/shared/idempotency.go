package shared

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates the same key was reused with a
// different payload.
var ErrIdempotencyConflict = errors.New("shared: idempotency key reused with different payload")

// IdempotencyRecord links a caller-supplied key to the result of the
// original request.
type IdempotencyRecord struct {
	Key         string
	Module      string
	PayloadHash string
	EntryID     int64
	CreatedAt   time.Time
}

// PayloadHash produces a stable digest of a request payload so replays
// with a mutated body can be rejected.
func PayloadHash(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("shared: hash payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// IdempotencyStore performs maintenance on persisted keys. Transactional
// lookup and insert live on the owning repository so they share the
// posting transaction.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Cleanup removes entries older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	cmd, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
