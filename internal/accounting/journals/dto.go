package journals

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// LineInput describes one journal line for draft creation.
type LineInput struct {
	AccountID     int64  `validate:"required"`
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Currency      string
	ForeignAmount *decimal.Decimal
	ExchangeRate  *decimal.Decimal
}

// DraftInput groups fields required to create or replace a draft entry.
type DraftInput struct {
	Number              string
	Date                time.Time    `validate:"required"`
	Source              SourceModule `validate:"required"`
	Description         string
	Reference           string
	IdempotencyKey      string
	RecurringTemplateID *int64
	OccurrenceDate      *time.Time
	ReversesEntryID     *int64
	CreatedBy           int64
	Lines               []LineInput `validate:"min=2"`
}

// PostInput wraps parameters for posting a draft.
type PostInput struct {
	EntryID        int64
	ActorID        int64
	IdempotencyKey string
}

// VoidInput wraps parameters for voiding a draft.
type VoidInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

// ReverseInput wraps parameters for reversing a posted entry.
type ReverseInput struct {
	EntryID        int64
	ReversalDate   time.Time
	ActorID        int64
	Description    string
	IdempotencyKey string
}

// ListFilter narrows entry listings.
type ListFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    JournalStatus
	Source    SourceModule
	AccountID int64
	Reference string
	Limit     int
	Offset    int
}

// Totals sums line debits and credits.
func (in DraftInput) Totals() (debit, credit decimal.Decimal) {
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Validate performs the structural checks that do not need the store:
// line count, side exclusivity, uniform scale, foreign-currency triples,
// and the balance rule.
func (in *DraftInput) Validate() error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Date.IsZero() {
		return errors.New("journals: entry date required")
	}
	if !in.Source.Valid() {
		return fmt.Errorf("journals: unknown source module %q", in.Source)
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journals: line %d missing account", idx+1)
		}
		if line.Debit.Sign() < 0 || line.Credit.Sign() < 0 {
			return fmt.Errorf("journals: line %d negative amount", idx+1)
		}
		debitSet := line.Debit.Sign() > 0
		creditSet := line.Credit.Sign() > 0
		if debitSet == creditSet {
			return fmt.Errorf("journals: line %d must carry exactly one of debit or credit", idx+1)
		}
		amount := line.Debit
		if creditSet {
			amount = line.Credit
		}
		if !amount.Equal(money.RoundBase(amount)) {
			return fmt.Errorf("journals: line %d amount exceeds base currency scale", idx+1)
		}
		if err := validateCurrencyTriple(idx+1, line, amount); err != nil {
			return err
		}
	}
	debit, credit := in.Totals()
	if !money.WithinEpsilon(debit, credit, money.BaseScale) {
		return shared.ErrUnbalanced
	}
	return nil
}

func validateCurrencyTriple(lineNo int, line LineInput, amount decimal.Decimal) error {
	hasCurrency := line.Currency != ""
	hasAmount := line.ForeignAmount != nil
	hasRate := line.ExchangeRate != nil
	if !hasCurrency && !hasAmount && !hasRate {
		return nil
	}
	if !(hasCurrency && hasAmount && hasRate) {
		return fmt.Errorf("%w: line %d triple incomplete", shared.ErrForeignCurrencyMismatch, lineNo)
	}
	scale, err := money.Scale(line.Currency)
	if err != nil {
		return fmt.Errorf("%w: line %d: %v", shared.ErrForeignCurrencyMismatch, lineNo, err)
	}
	foreign := *line.ForeignAmount
	if !foreign.Equal(money.Round(foreign, scale)) {
		return fmt.Errorf("%w: line %d foreign amount exceeds %s scale", shared.ErrForeignCurrencyMismatch, lineNo, line.Currency)
	}
	if line.ExchangeRate.Sign() <= 0 {
		return fmt.Errorf("%w: line %d non-positive rate", shared.ErrForeignCurrencyMismatch, lineNo)
	}
	if !money.Convert(foreign, *line.ExchangeRate).Equal(amount) {
		return fmt.Errorf("%w: line %d amount != foreign x rate", shared.ErrForeignCurrencyMismatch, lineNo)
	}
	return nil
}

// toLines materialises input lines with sequential line numbers.
func (in DraftInput) toLines() []JournalLine {
	out := make([]JournalLine, 0, len(in.Lines))
	for idx, line := range in.Lines {
		jl := JournalLine{
			LineNo:      idx + 1,
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}
		if line.Currency != "" {
			currency := line.Currency
			jl.Currency = &currency
			jl.ForeignAmount = line.ForeignAmount
			jl.ExchangeRate = line.ExchangeRate
		}
		out = append(out, jl)
	}
	return out
}
