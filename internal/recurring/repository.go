package recurring

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for recurring templates.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Template, error)
	List(ctx context.Context) ([]Template, error)
	ListDue(ctx context.Context, asOf time.Time) ([]Template, error)
}

// TxRepository exposes template operations available within a transaction.
type TxRepository interface {
	Insert(ctx context.Context, in CreateTemplateInput) (Template, error)
	GetForUpdate(ctx context.Context, id int64) (Template, error)
	Update(ctx context.Context, t Template) error
	AppendEvent(ctx context.Context, ev events.Event) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const templateColumns = `id, name, frequency, recur_interval, start_date, end_policy, end_after, end_date, status, next_run_date, total_occurrences, auto_post, created_by, created_at, updated_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Name, &t.Frequency, &t.Interval, &t.StartDate, &t.EndPolicy, &t.EndAfter, &t.EndDate,
		&t.Status, &t.NextRunDate, &t.TotalOccurrences, &t.AutoPost, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrTemplateNotFound
		}
		return Template{}, err
	}
	return t, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id=$1`, id))
	if err != nil {
		return Template{}, err
	}
	t.Lines, err = queryTemplateLines(ctx, r.pool, id)
	return t, err
}

func (r *repository) List(ctx context.Context) ([]Template, error) {
	return r.queryTemplates(ctx, `SELECT `+templateColumns+` FROM recurring_templates ORDER BY id`)
}

// ListDue loads active templates whose next run is at or before asOf,
// bodies included.
func (r *repository) ListDue(ctx context.Context, asOf time.Time) ([]Template, error) {
	templates, err := r.queryTemplates(ctx, `SELECT `+templateColumns+` FROM recurring_templates
WHERE status='ACTIVE' AND next_run_date <= $1 ORDER BY next_run_date, id`, asOf)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		templates[i].Lines, err = queryTemplateLines(ctx, r.pool, templates[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return templates, nil
}

func (r *repository) queryTemplates(ctx context.Context, sql string, args ...any) ([]Template, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryTemplateLines(ctx context.Context, q rowQuerier, templateID int64) ([]TemplateLine, error) {
	rows, err := q.Query(ctx, `SELECT id, template_id, line_no, account_id, side, amount, description, tax_code, cost_center
FROM recurring_template_lines WHERE template_id=$1 ORDER BY line_no`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TemplateLine
	for rows.Next() {
		var l TemplateLine
		var amount pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.TemplateID, &l.LineNo, &l.AccountID, &l.Side, &amount, &l.Description, &l.TaxCode, &l.CostCenter); err != nil {
			return nil, err
		}
		l.Amount = db.NumericToDecimal(amount)
		out = append(out, l)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Insert(ctx context.Context, in CreateTemplateInput) (Template, error) {
	t, err := scanTemplate(r.tx.QueryRow(ctx, `INSERT INTO recurring_templates
(name, frequency, recur_interval, start_date, end_policy, end_after, end_date, status, next_run_date, total_occurrences, auto_post, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,'ACTIVE',$4,0,$8,$9)
RETURNING `+templateColumns,
		in.Name, in.Frequency, in.Interval, in.StartDate, in.EndPolicy, in.EndAfter, in.EndDate, in.AutoPost, in.CreatedBy))
	if err != nil {
		return Template{}, err
	}
	for idx, l := range in.Lines {
		amount, err := db.DecimalToNumeric(l.Amount)
		if err != nil {
			return Template{}, err
		}
		var line TemplateLine
		err = r.tx.QueryRow(ctx, `INSERT INTO recurring_template_lines
(template_id, line_no, account_id, side, amount, description, tax_code, cost_center)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id, template_id, line_no, account_id, side, description, tax_code, cost_center`,
			t.ID, idx+1, l.AccountID, l.Side, amount, l.Description, l.TaxCode, l.CostCenter).
			Scan(&line.ID, &line.TemplateID, &line.LineNo, &line.AccountID, &line.Side, &line.Description, &line.TaxCode, &line.CostCenter)
		if err != nil {
			return Template{}, err
		}
		line.Amount = l.Amount
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Template, error) {
	return scanTemplate(r.tx.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Update(ctx context.Context, t Template) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE recurring_templates
SET status=$2, next_run_date=$3, total_occurrences=$4, updated_at=NOW() WHERE id=$1`,
		t.ID, t.Status, t.NextRunDate, t.TotalOccurrences)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *txRepository) AppendEvent(ctx context.Context, ev events.Event) error {
	return events.AppendTx(ctx, r.tx, ev)
}
