package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskRecurringTick materialises due recurring templates.
	TaskRecurringTick = "ledger:recurring_tick"
	// TaskLedgerIntegrity sweeps account projections against posted lines.
	TaskLedgerIntegrity = "ledger:integrity_sweep"
	// TaskIdempotencyCleanup prunes idempotency keys past retention.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// NewRecurringTickTask constructs the scheduler tick task. The tick
// carries no payload; due templates are discovered from the store.
func NewRecurringTickTask() *asynq.Task {
	return asynq.NewTask(TaskRecurringTick, nil)
}

// NewLedgerIntegrityTask constructs the integrity sweep task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewIdempotencyCleanupTask constructs the key retention task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
