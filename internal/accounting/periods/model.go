package periods

import (
	"errors"
	"strings"
	"time"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen    PeriodStatus = "OPEN"
	PeriodStatusClosing PeriodStatus = "CLOSING"
	PeriodStatusClosed  PeriodStatus = "CLOSED"
)

// Period represents a fiscal period window. Periods partition the
// calendar: no gaps, no overlaps, exactly one period per date.
type Period struct {
	ID         int64
	Name       string
	StartDate  time.Time
	EndDate    time.Time
	Status     PeriodStatus
	ClosedBy   *int64
	ClosedAt   *time.Time
	ReopenedBy *int64
	ReopenedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contains reports whether the date falls inside the period's inclusive
// interval. Only the calendar day matters.
func (p Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// OpenPeriodInput captures fields for a new period.
type OpenPeriodInput struct {
	Name      string `validate:"required"`
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

var (
	// ErrPeriodOverlap indicates the new range conflicts with an existing period.
	ErrPeriodOverlap = errors.New("periods: range overlaps existing period")
	// ErrPeriodGap indicates the new period does not extend the calendar
	// contiguously.
	ErrPeriodGap = errors.New("periods: range leaves a calendar gap")
)

// Validate checks the input is coherent.
func (in *OpenPeriodInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errors.New("periods: name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("periods: start and end date required")
	}
	if in.StartDate.After(in.EndDate) {
		return errors.New("periods: start date cannot be after end date")
	}
	return nil
}
