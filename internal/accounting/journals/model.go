package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values. Transitions are
// draft -> posted and draft -> void only; a posted entry is immutable and
// is undone by posting a reversal.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// SourceModule tags the sub-ledger an entry originated from.
type SourceModule string

const (
	SourceManual    SourceModule = "MANUAL"
	SourceAP        SourceModule = "AP"
	SourceAR        SourceModule = "AR"
	SourcePayroll   SourceModule = "PAYROLL"
	SourceInventory SourceModule = "INVENTORY"
	SourceTax       SourceModule = "TAX"
	SourceRecurring SourceModule = "RECURRING"
)

// Valid reports whether the source tag is known.
func (m SourceModule) Valid() bool {
	switch m {
	case SourceManual, SourceAP, SourceAR, SourcePayroll, SourceInventory, SourceTax, SourceRecurring:
		return true
	}
	return false
}

// Prefix returns the entry-number prefix for the source.
func (m SourceModule) Prefix() string {
	switch m {
	case SourceAP:
		return "AP"
	case SourceAR:
		return "AR"
	case SourcePayroll:
		return "PR"
	case SourceInventory:
		return "INV"
	case SourceTax:
		return "TAX"
	case SourceRecurring:
		return "RJ"
	default:
		return "GL"
	}
}

// FormatNumber renders the canonical entry number. The sequence resets
// per prefix and year.
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// ReversalPrefix derives the numbering prefix for reversal entries.
func ReversalPrefix(prefix string) string {
	return prefix + "-REV"
}

// JournalEntry captures the entry header. Totals mirror the line sums and
// are stamped at validation time.
type JournalEntry struct {
	ID                  int64
	Number              string
	Date                time.Time
	Description         string
	Reference           string
	Status              JournalStatus
	Source              SourceModule
	RecurringTemplateID *int64
	OccurrenceDate      *time.Time
	ReversesEntryID     *int64
	CreatedBy           int64
	PostedBy            *int64
	PostedAt            *time.Time
	TotalDebit          decimal.Decimal
	TotalCredit         decimal.Decimal
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Lines               []JournalLine
}

// JournalLine stores a debit or credit against one account. Exactly one
// of Debit/Credit is strictly positive; the other is zero. The optional
// foreign-currency triple is all-or-nothing.
type JournalLine struct {
	ID            int64
	JournalID     int64
	LineNo        int
	AccountID     int64
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Currency      *string
	ForeignAmount *decimal.Decimal
	ExchangeRate  *decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Amount returns the line's single non-zero amount.
func (l JournalLine) Amount() decimal.Decimal {
	if l.Debit.Sign() > 0 {
		return l.Debit
	}
	return l.Credit
}
