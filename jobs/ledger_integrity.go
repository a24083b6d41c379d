package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/observability"
)

// NewLedgerIntegrityHandler returns the sweep that compares every
// account's stored running balance with the aggregate of its posted
// lines. Drift should always be zero; any hit is logged as an error for
// the operator to chase.
func NewLedgerIntegrityHandler(svc *accounts.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		all, err := svc.List(ctx)
		if err != nil {
			metrics.JobObserved(TaskLedgerIntegrity, "error")
			return err
		}
		drifted := 0
		for _, acc := range all {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := svc.Reconcile(ctx, acc.ID)
			if err != nil {
				metrics.JobObserved(TaskLedgerIntegrity, "error")
				return err
			}
			if !report.Clean() {
				drifted++
				if logger != nil {
					logger.Error("ledger drift detected",
						slog.Int64("account_id", acc.ID),
						slog.String("code", acc.Code),
						slog.String("stored", report.Stored.StringFixed(money.BaseScale)),
						slog.String("computed", report.Computed.StringFixed(money.BaseScale)),
						slog.String("drift", report.Drift.StringFixed(money.BaseScale)))
				}
			}
		}
		status := "ok"
		if drifted > 0 {
			status = "drift"
		}
		metrics.JobObserved(TaskLedgerIntegrity, status)
		if logger != nil {
			logger.Info("ledger integrity sweep", slog.Int("accounts", len(all)), slog.Int("drifted", drifted))
		}
		return nil
	}
}
