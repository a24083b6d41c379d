package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the accounting core. Events are appended to the
// ledger_events table inside the transaction that caused them and fanned
// out to subscribers only after that transaction commits.
const (
	TypeJournalPosted          = "ledger.journal.posted"
	TypeJournalVoided          = "ledger.journal.voided"
	TypePeriodClosing          = "ledger.period.closing"
	TypePeriodClosed           = "ledger.period.closed"
	TypeRecurringJournalFailed = "ledger.recurring.failed"
)

// Event is one record of the append-only event log.
type Event struct {
	ID         uuid.UUID
	Type       string
	OccurredAt time.Time
	Payload    map[string]any
}

// PostedLine is the per-line payload carried by a JournalPosted event.
type PostedLine struct {
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

// JournalPosted builds the event emitted after a successful post.
func JournalPosted(entryID int64, number string, date time.Time, lines []PostedLine, at time.Time) Event {
	payloadLines := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		payloadLines = append(payloadLines, map[string]any{
			"account_id": l.AccountID,
			"debit":      l.Debit,
			"credit":     l.Credit,
		})
	}
	return Event{
		ID:         uuid.New(),
		Type:       TypeJournalPosted,
		OccurredAt: at,
		Payload: map[string]any{
			"entry_id": entryID,
			"number":   number,
			"date":     date.Format("2006-01-02"),
			"lines":    payloadLines,
		},
	}
}

// JournalVoided builds the event emitted when a draft is voided.
func JournalVoided(entryID int64, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypeJournalVoided,
		OccurredAt: at,
		Payload:    map[string]any{"entry_id": entryID},
	}
}

// PeriodClosing builds the event emitted when a close begins.
func PeriodClosing(periodID int64, name string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypePeriodClosing,
		OccurredAt: at,
		Payload:    map[string]any{"period_id": periodID, "period": name},
	}
}

// PeriodClosed builds the event emitted when a close finalizes.
func PeriodClosed(periodID int64, name string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypePeriodClosed,
		OccurredAt: at,
		Payload:    map[string]any{"period_id": periodID, "period": name},
	}
}

// RecurringJournalFailed builds the event recorded when a template run
// fails. The scheduler retries on the next tick.
func RecurringJournalFailed(templateID int64, date time.Time, reason string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypeRecurringJournalFailed,
		OccurredAt: at,
		Payload: map[string]any{
			"template_id": templateID,
			"date":        date.Format("2006-01-02"),
			"reason":      reason,
		},
	}
}
