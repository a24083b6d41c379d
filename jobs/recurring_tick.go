package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/recurring"
)

// systemActorID tags entries created by background jobs rather than a
// human operator.
const systemActorID = 0

// NewRecurringTickHandler returns the handler that drives the recurring
// scheduler. Per-template failures are recorded inside RunDue and do not
// fail the task; only an inability to run the tick at all is retried.
func NewRecurringTickHandler(svc *recurring.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		sum, err := svc.RunDue(ctx, systemActorID)
		if err != nil {
			metrics.JobObserved(TaskRecurringTick, "error")
			if logger != nil {
				logger.Error("recurring tick", slog.Any("error", err))
			}
			return err
		}
		metrics.JobObserved(TaskRecurringTick, "ok")
		metrics.SchedulerRun(sum.Created, sum.Posted, sum.Skipped, sum.Failed, sum.Completed)
		if logger != nil {
			logger.Info("recurring tick",
				slog.Int("due", sum.Due),
				slog.Int("created", sum.Created),
				slog.Int("posted", sum.Posted),
				slog.Int("skipped", sum.Skipped),
				slog.Int("failed", sum.Failed),
				slog.Int("completed", sum.Completed))
		}
		return nil
	}
}
