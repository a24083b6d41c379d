package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// NewIdempotencyCleanupHandler prunes idempotency keys older than the
// retention window. Replays beyond the window are indistinguishable from
// fresh requests, which is acceptable for keys this old.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		removed, err := store.Cleanup(ctx, retention)
		if err != nil {
			metrics.JobObserved(TaskIdempotencyCleanup, "error")
			return err
		}
		metrics.JobObserved(TaskIdempotencyCleanup, "ok")
		if logger != nil {
			logger.Info("idempotency cleanup", slog.Int64("removed", removed))
		}
		return nil
	}
}
