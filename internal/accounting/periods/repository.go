package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for accounting periods.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Period, error)
	FindByDate(ctx context.Context, date time.Time) (Period, error)
}

// TxRepository exposes period operations available within a transaction.
type TxRepository interface {
	Insert(ctx context.Context, in OpenPeriodInput) (Period, error)
	GetForUpdate(ctx context.Context, id int64) (Period, error)
	LatestEndDate(ctx context.Context) (*time.Time, error)
	RangeConflict(ctx context.Context, start, end time.Time) (bool, error)
	CountDrafts(ctx context.Context, start, end time.Time) (int, error)
	Update(ctx context.Context, p Period) error
	AppendEvent(ctx context.Context, ev events.Event) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, name, start_date, end_date, status, closed_by, closed_at, reopened_by, reopened_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.ReopenedBy, &p.ReopenedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE $1 BETWEEN start_date AND end_date LIMIT 1`, date))
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Insert(ctx context.Context, in OpenPeriodInput) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO periods (name, start_date, end_date, status)
VALUES ($1,$2,$3,'OPEN') RETURNING `+periodColumns, in.Name, in.StartDate, in.EndDate))
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) LatestEndDate(ctx context.Context) (*time.Time, error) {
	var end *time.Time
	err := r.tx.QueryRow(ctx, `SELECT MAX(end_date) FROM periods`).Scan(&end)
	if err != nil {
		return nil, err
	}
	return end, nil
}

func (r *txRepository) RangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM periods WHERE start_date <= $2 AND end_date >= $1
)`, start, end).Scan(&exists)
	return exists, err
}

func (r *txRepository) CountDrafts(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE status='DRAFT' AND date BETWEEN $1 AND $2`, start, end).Scan(&count)
	return count, err
}

func (r *txRepository) Update(ctx context.Context, p Period) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE periods SET status=$2, closed_by=$3, closed_at=$4, reopened_by=$5, reopened_at=$6, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Status, p.ClosedBy, p.ClosedAt, p.ReopenedBy, p.ReopenedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) AppendEvent(ctx context.Context, ev events.Event) error {
	return events.AppendTx(ctx, r.tx, ev)
}
