package recurring

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// Frequency enumerates recurrence cadences.
type Frequency string

const (
	FrequencyDaily      Frequency = "DAILY"
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyBiweekly   Frequency = "BIWEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiAnnual Frequency = "SEMI_ANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
	FrequencyCustom     Frequency = "CUSTOM"
)

// Valid reports whether the cadence is known.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiAnnual, FrequencyAnnual, FrequencyCustom:
		return true
	}
	return false
}

// EndPolicy enumerates how a schedule terminates.
type EndPolicy string

const (
	EndNever            EndPolicy = "NEVER"
	EndAfterOccurrences EndPolicy = "AFTER_OCCURRENCES"
	EndOnDate           EndPolicy = "ON_DATE"
)

// TemplateStatus enumerates template lifecycle values.
type TemplateStatus string

const (
	TemplateStatusActive    TemplateStatus = "ACTIVE"
	TemplateStatusPaused    TemplateStatus = "PAUSED"
	TemplateStatusCompleted TemplateStatus = "COMPLETED"
	TemplateStatusCancelled TemplateStatus = "CANCELLED"
)

// TemplateLine is one line specification of the template body.
type TemplateLine struct {
	ID          int64
	TemplateID  int64
	LineNo      int
	AccountID   int64
	Side        money.Side
	Amount      decimal.Decimal
	Description string
	TaxCode     string
	CostCenter  string
}

// Template drives the creation of journal entries on a schedule.
type Template struct {
	ID               int64
	Name             string
	Frequency        Frequency
	Interval         int
	StartDate        time.Time
	EndPolicy        EndPolicy
	EndAfter         int
	EndDate          *time.Time
	Status           TemplateStatus
	NextRunDate      time.Time
	TotalOccurrences int
	AutoPost         bool
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Lines            []TemplateLine
}

// CreateTemplateInput captures fields for a new template.
type CreateTemplateInput struct {
	Name      string    `validate:"required"`
	Frequency Frequency `validate:"required"`
	Interval  int       `validate:"min=1"`
	StartDate time.Time
	EndPolicy EndPolicy
	EndAfter  int
	EndDate   *time.Time
	AutoPost  bool
	CreatedBy int64
	Lines     []TemplateLine `validate:"min=2"`
}

var (
	// ErrTemplateUnbalanced indicates the body's debits != credits.
	ErrTemplateUnbalanced = errors.New("recurring: template body must balance")
	// ErrTemplateNotFound indicates a missing template.
	ErrTemplateNotFound = errors.New("recurring: template not found")
	// ErrTemplateNotActive indicates the template cannot run.
	ErrTemplateNotActive = errors.New("recurring: template not active")
)

// Validate checks the input, including the balance of the body.
func (in *CreateTemplateInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errors.New("recurring: name required")
	}
	if !in.Frequency.Valid() {
		return fmt.Errorf("recurring: unknown frequency %q", in.Frequency)
	}
	if in.Interval < 1 {
		return errors.New("recurring: interval must be >= 1")
	}
	if in.StartDate.IsZero() {
		return errors.New("recurring: start date required")
	}
	switch in.EndPolicy {
	case "", EndNever:
		in.EndPolicy = EndNever
	case EndAfterOccurrences:
		if in.EndAfter < 1 {
			return errors.New("recurring: occurrence limit must be >= 1")
		}
	case EndOnDate:
		if in.EndDate == nil {
			return errors.New("recurring: end date required")
		}
	default:
		return fmt.Errorf("recurring: unknown end policy %q", in.EndPolicy)
	}
	if len(in.Lines) < 2 {
		return errors.New("recurring: body requires at least two lines")
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("recurring: line %d missing account", idx+1)
		}
		if !line.Side.Valid() {
			return fmt.Errorf("recurring: line %d unknown side", idx+1)
		}
		if !money.IsPositive(line.Amount) {
			return fmt.Errorf("recurring: line %d amount must be positive", idx+1)
		}
		if line.Side == money.SideDebit {
			debit = debit.Add(line.Amount)
		} else {
			credit = credit.Add(line.Amount)
		}
	}
	if !money.WithinEpsilon(debit, credit, money.BaseScale) {
		return ErrTemplateUnbalanced
	}
	return nil
}
