package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AppendTx writes one event into the ledger_events table using the
// caller's transaction, so the record commits (or rolls back) with the
// state change it describes.
func AppendTx(ctx context.Context, tx pgx.Tx, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO ledger_events (id, type, occurred_at, payload) VALUES ($1,$2,$3,$4)`,
		ev.ID, ev.Type, ev.OccurredAt, payload)
	return err
}

// Log reads the append-only event history. Consumers that missed a
// publish catch up from here.
type Log struct {
	pool *pgxpool.Pool
}

// NewLog constructs the reader.
func NewLog(pool *pgxpool.Pool) *Log {
	return &Log{pool: pool}
}

// ListSince returns events that occurred after the cutoff, oldest first.
func (l *Log) ListSince(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `SELECT id, type, occurred_at, payload FROM ledger_events WHERE occurred_at > $1 ORDER BY occurred_at ASC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.OccurredAt, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("events: unmarshal payload: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
