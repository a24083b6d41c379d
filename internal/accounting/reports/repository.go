package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository reads posted-line aggregates. All queries run against
// committed data only and never block writers.
type Repository interface {
	ActivityAsOf(ctx context.Context, asOf time.Time) ([]AccountActivity, error)
	AccountHeader(ctx context.Context, accountID int64) (int64, string, string, money.Side, error)
	OpeningBalance(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, error)
	Movements(ctx context.Context, accountID int64, from, to time.Time) ([]LedgerMovement, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ActivityAsOf(ctx context.Context, asOf time.Time) ([]AccountActivity, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.normal_side,
COALESCE(p.debit, 0), COALESCE(p.credit, 0)
FROM accounts a
LEFT JOIN (
	SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
	FROM journal_lines l
	JOIN journal_entries e ON e.id = l.je_id
	WHERE e.status = 'POSTED' AND e.date <= $1
	GROUP BY l.account_id
) p ON p.account_id = a.id
ORDER BY a.code`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var act AccountActivity
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&act.AccountID, &act.Code, &act.Name, &act.Type, &act.NormalSide, &debit, &credit); err != nil {
			return nil, err
		}
		act.Debit = db.NumericToDecimal(debit)
		act.Credit = db.NumericToDecimal(credit)
		out = append(out, act)
	}
	return out, rows.Err()
}

func (r *repository) AccountHeader(ctx context.Context, accountID int64) (int64, string, string, money.Side, error) {
	var id int64
	var code, name string
	var side money.Side
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, normal_side FROM accounts WHERE id=$1`, accountID).
		Scan(&id, &code, &name, &side)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", "", "", shared.ErrAccountNotFound
		}
		return 0, "", "", "", err
	}
	return id, code, name, side, nil
}

func (r *repository) OpeningBalance(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, error) {
	var acct accounts.Account
	var debit, credit pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT a.normal_side, COALESCE(p.debit, 0), COALESCE(p.credit, 0)
FROM accounts a
LEFT JOIN (
	SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
	FROM journal_lines l
	JOIN journal_entries e ON e.id = l.je_id
	WHERE l.account_id = $1 AND e.status = 'POSTED' AND e.date < $2
	GROUP BY l.account_id
) p ON p.account_id = a.id
WHERE a.id = $1`, accountID, before).Scan(&acct.NormalSide, &debit, &credit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return acct.Signed(db.NumericToDecimal(debit), db.NumericToDecimal(credit)), nil
}

func (r *repository) Movements(ctx context.Context, accountID int64, from, to time.Time) ([]LedgerMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.number, e.date, l.description, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id = $1 AND e.status = 'POSTED' AND e.date BETWEEN $2 AND $3
ORDER BY e.date, e.number, l.line_no`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerMovement
	for rows.Next() {
		var mv LedgerMovement
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&mv.EntryID, &mv.Number, &mv.Date, &mv.Description, &debit, &credit); err != nil {
			return nil, err
		}
		mv.Debit = db.NumericToDecimal(debit)
		mv.Credit = db.NumericToDecimal(credit)
		out = append(out, mv)
	}
	return out, rows.Err()
}
