package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/periods"
	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrDuplicateOccurrence indicates a recurring occurrence was already
// materialised. The scheduler treats it as success.
var ErrDuplicateOccurrence = errors.New("journals: occurrence already materialised")

// Repository encapsulates DB operations for journals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error
	DeleteLines(ctx context.Context, entryID int64) error
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	UpdateEntryHeader(ctx context.Context, e JournalEntry) error
	NextSequence(ctx context.Context, prefix string, year int) (int64, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	// LockAccounts acquires FOR UPDATE row locks in ascending id order.
	LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	ApplyBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
	// FindPeriodByDate locks the covering period row so a concurrent close
	// cannot slip between validation and commit.
	FindPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error)
	AppendEvent(ctx context.Context, ev events.Event) error
	LookupIdempotency(ctx context.Context, key string) (shared.IdempotencyRecord, bool, error)
	SaveIdempotency(ctx context.Context, rec shared.IdempotencyRecord) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, number, date, description, reference, status, source, recurring_template_id, occurrence_date, reverses_entry_id, created_by, posted_by, posted_at, total_debit, total_credit, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var debit, credit pgtype.Numeric
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.Reference, &e.Status, &e.Source,
		&e.RecurringTemplateID, &e.OccurrenceDate, &e.ReversesEntryID, &e.CreatedBy, &e.PostedBy, &e.PostedAt,
		&debit, &credit, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, accshared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	e.TotalDebit = db.NumericToDecimal(debit)
	e.TotalCredit = db.NumericToDecimal(credit)
	return e, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.pool, id)
	return entry, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.DateFrom != nil {
		add(`date >= $%d`, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add(`date <= $%d`, *filter.DateTo)
	}
	if filter.Status != "" {
		add(`status = $%d`, filter.Status)
	}
	if filter.Source != "" {
		add(`source = $%d`, filter.Source)
	}
	if filter.Reference != "" {
		add(`reference ILIKE $%d`, "%"+filter.Reference+"%")
	}
	if filter.AccountID != 0 {
		add(`id IN (SELECT je_id FROM journal_lines WHERE account_id = $%d)`, filter.AccountID)
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date, number`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type lineQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q lineQuerier, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, je_id, line_no, account_id, description, debit, credit, currency, foreign_amount, exchange_rate, created_at, updated_at
FROM journal_lines WHERE je_id=$1 ORDER BY line_no`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		var debit, credit pgtype.Numeric
		var foreign, rate *pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.JournalID, &l.LineNo, &l.AccountID, &l.Description, &debit, &credit,
			&l.Currency, &foreign, &rate, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Debit = db.NumericToDecimal(debit)
		l.Credit = db.NumericToDecimal(credit)
		if foreign != nil {
			d := db.NumericToDecimal(*foreign)
			l.ForeignAmount = &d
		}
		if rate != nil {
			d := db.NumericToDecimal(*rate)
			l.ExchangeRate = &d
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(number, date, description, reference, status, source, recurring_template_id, occurrence_date, reverses_entry_id, created_by, total_debit, total_credit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING `+entryColumns,
		e.Number, e.Date, e.Description, e.Reference, e.Status, e.Source,
		e.RecurringTemplateID, e.OccurrenceDate, e.ReversesEntryID, e.CreatedBy,
		e.TotalDebit.String(), e.TotalCredit.String())
	inserted, err := scanEntry(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journal_entries_number") {
			return JournalEntry{}, accshared.ErrDuplicateEntryNumber
		}
		if db.IsUniqueViolation(err, "uq_journal_entries_occurrence") {
			return JournalEntry{}, ErrDuplicateOccurrence
		}
		return JournalEntry{}, err
	}
	return inserted, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		var foreign, rate any
		if line.ForeignAmount != nil {
			foreign = line.ForeignAmount.String()
		}
		if line.ExchangeRate != nil {
			rate = line.ExchangeRate.String()
		}
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines
(je_id, line_no, account_id, description, debit, credit, currency, foreign_amount, exchange_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			entryID, line.LineNo, line.AccountID, line.Description,
			line.Debit.String(), line.Credit.String(), line.Currency, foreign, rate); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID)
	return err
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	return queryLines(ctx, r.tx, entryID)
}

func (r *txRepository) UpdateEntryHeader(ctx context.Context, e JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries
SET number=$2, date=$3, description=$4, reference=$5, status=$6, posted_by=$7, posted_at=$8, total_debit=$9, total_credit=$10, updated_at=NOW()
WHERE id=$1`,
		e.ID, e.Number, e.Date, e.Description, e.Reference, e.Status, e.PostedBy, e.PostedAt,
		e.TotalDebit.String(), e.TotalCredit.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accshared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) NextSequence(ctx context.Context, prefix string, year int) (int64, error) {
	var value int64
	err := r.tx.QueryRow(ctx, `INSERT INTO entry_sequences (prefix, year, value) VALUES ($1,$2,1)
ON CONFLICT (prefix, year) DO UPDATE SET value = entry_sequences.value + 1
RETURNING value`, prefix, year).Scan(&value)
	return value, err
}

func (r *txRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE number=$1)`, number).Scan(&exists)
	return exists, err
}

const accountColumns = `id, code, name, type, normal_side, parent_id, is_active, balance, created_at, updated_at`

func (r *txRepository) queryAccounts(ctx context.Context, query string, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		var balance pgtype.Numeric
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalSide, &a.ParentID, &a.IsActive, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Balance = db.NumericToDecimal(balance)
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *txRepository) GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
}

func (r *txRepository) LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
}

func (r *txRepository) ApplyBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accshared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) FindPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, name, start_date, end_date, status, closed_by, closed_at, reopened_by, reopened_at, created_at, updated_at
FROM periods WHERE $1 BETWEEN start_date AND end_date LIMIT 1 FOR UPDATE`, date).
		Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.ReopenedBy, &p.ReopenedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, accshared.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) AppendEvent(ctx context.Context, ev events.Event) error {
	return events.AppendTx(ctx, r.tx, ev)
}

func (r *txRepository) LookupIdempotency(ctx context.Context, key string) (shared.IdempotencyRecord, bool, error) {
	var rec shared.IdempotencyRecord
	err := r.tx.QueryRow(ctx, `SELECT key, module, payload_hash, entry_id, created_at FROM idempotency_keys WHERE key=$1`, key).
		Scan(&rec.Key, &rec.Module, &rec.PayloadHash, &rec.EntryID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.IdempotencyRecord{}, false, nil
		}
		return shared.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (r *txRepository) SaveIdempotency(ctx context.Context, rec shared.IdempotencyRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO idempotency_keys (key, module, payload_hash, entry_id, created_at) VALUES ($1,$2,$3,$4,$5)`,
		rec.Key, rec.Module, rec.PayloadHash, rec.EntryID, rec.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return shared.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}
