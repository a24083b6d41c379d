package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/periods"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LedgerCLI exposes administrative ledger operations for operators:
// period lifecycle, reconciliation, and trial balance dumps.
type LedgerCLI struct {
	periods  *periods.Service
	accounts *accounts.Service
	reports  *reports.Service
	out      io.Writer
}

// NewLedgerCLI wires the CLI against a database pool.
func NewLedgerCLI(pool *pgxpool.Pool, out io.Writer) *LedgerCLI {
	audit := shared.NewAuditLogger(pool)
	return &LedgerCLI{
		periods:  periods.NewService(periods.NewRepository(pool), audit, nil),
		accounts: accounts.NewService(accounts.NewRepository(pool), audit),
		reports:  reports.NewService(reports.NewRepository(pool)),
		out:      out,
	}
}

// OpenPeriod creates the next accounting period.
func (c *LedgerCLI) OpenPeriod(ctx context.Context, name string, start, end time.Time, actorID int64) error {
	period, err := c.periods.Open(ctx, periods.OpenPeriodInput{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		ActorID:   actorID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "opened period %s (#%d) %s..%s\n", period.Name, period.ID,
		period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02"))
	return nil
}

// ClosePeriod runs the two-step close: begin, then finalize.
func (c *LedgerCLI) ClosePeriod(ctx context.Context, periodID, actorID int64) error {
	if _, err := c.periods.BeginClose(ctx, periodID, actorID); err != nil {
		return err
	}
	period, err := c.periods.FinalizeClose(ctx, periodID, actorID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "closed period %s (#%d)\n", period.Name, period.ID)
	return nil
}

// ReopenPeriod returns a closed period to open with an audit trail.
func (c *LedgerCLI) ReopenPeriod(ctx context.Context, periodID, actorID int64, reason string) error {
	period, err := c.periods.Reopen(ctx, periodID, actorID, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "reopened period %s (#%d)\n", period.Name, period.ID)
	return nil
}

// Reconcile checks one account's projection against its posted lines.
func (c *LedgerCLI) Reconcile(ctx context.Context, accountID int64) error {
	report, err := c.accounts.Reconcile(ctx, accountID)
	if err != nil {
		return err
	}
	if report.Clean() {
		fmt.Fprintf(c.out, "account %d clean: balance %s\n", accountID, report.Stored.StringFixed(money.BaseScale))
		return nil
	}
	fmt.Fprintf(c.out, "account %d DRIFT: stored %s computed %s drift %s\n", accountID,
		report.Stored.StringFixed(money.BaseScale),
		report.Computed.StringFixed(money.BaseScale),
		report.Drift.StringFixed(money.BaseScale))
	return nil
}

// TrialBalance prints the trial balance at a cutoff date.
func (c *LedgerCLI) TrialBalance(ctx context.Context, asOf time.Time) error {
	tb, err := c.reports.TrialBalance(ctx, asOf)
	if err != nil {
		return err
	}
	for _, row := range tb.Rows {
		fmt.Fprintf(c.out, "%-10s %-30s %12s %12s\n", row.Code, row.Name,
			row.Debit.StringFixed(money.BaseScale), row.Credit.StringFixed(money.BaseScale))
	}
	fmt.Fprintf(c.out, "%-41s %12s %12s balanced=%t\n", "TOTAL",
		tb.TotalDebit.StringFixed(money.BaseScale), tb.TotalCredit.StringFixed(money.BaseScale), tb.Balanced())
	return nil
}
