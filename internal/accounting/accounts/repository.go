package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	SumPostedLines(ctx context.Context, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
}

// TxRepository exposes account operations available within a transaction.
type TxRepository interface {
	Insert(ctx context.Context, in CreateAccountInput) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	Update(ctx context.Context, acc Account) error
	// Descendants returns the account and every node below it.
	Descendants(ctx context.Context, rootID int64) ([]Account, error)
	HasDraftLines(ctx context.Context, accountIDs []int64) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, code, name, type, normal_side, parent_id, is_active, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var balance pgtype.Numeric
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalSide, &a.ParentID, &a.IsActive, &balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	a.Balance = db.NumericToDecimal(balance)
	return a, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SumPostedLines aggregates posted debit/credit totals dated at or before asOf.
func (r *repository) SumPostedLines(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var d, c pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id = $1 AND e.status = 'POSTED' AND e.date <= $2`, accountID, asOf).Scan(&d, &c)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return db.NumericToDecimal(d), db.NumericToDecimal(c), nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Insert(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, type, normal_side, parent_id, is_active, balance)
VALUES ($1,$2,$3,$4,$5,TRUE,0) RETURNING `+accountColumns, in.Code, in.Name, in.Type, in.NormalSide, in.ParentID)
	acc, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_code") {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Update(ctx context.Context, acc Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, parent_id=$3, is_active=$4, updated_at=NOW() WHERE id=$1`,
		acc.ID, acc.Name, acc.ParentID, acc.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) Descendants(ctx context.Context, rootID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `WITH RECURSIVE subtree AS (
	SELECT `+accountColumns+` FROM accounts WHERE id=$1
	UNION ALL
	SELECT a.id, a.code, a.name, a.type, a.normal_side, a.parent_id, a.is_active, a.balance, a.created_at, a.updated_at
	FROM accounts a JOIN subtree s ON a.parent_id = s.id
) SELECT `+accountColumns+` FROM subtree`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) HasDraftLines(ctx context.Context, accountIDs []int64) (bool, error) {
	if len(accountIDs) == 0 {
		return false, nil
	}
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM journal_lines l
	JOIN journal_entries e ON e.id = l.je_id
	WHERE e.status = 'DRAFT' AND l.account_id = ANY($1)
)`, accountIDs).Scan(&exists)
	return exists, err
}
