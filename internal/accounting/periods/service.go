package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records period lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the period lifecycle: open -> closing -> closed,
// with an audited administrative reopen.
type Service struct {
	repo    Repository
	audit   AuditPort
	emitter events.Publisher
	now     func() time.Time
}

// NewService constructs the period service.
func NewService(repo Repository, audit AuditPort, emitter events.Publisher) *Service {
	if emitter == nil {
		emitter = events.NopPublisher{}
	}
	return &Service{repo: repo, audit: audit, emitter: emitter, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// FindByDate returns the period containing the date.
func (s *Service) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	return s.repo.FindByDate(ctx, date)
}

// Open creates a new open period. The range must not overlap an existing
// period and must extend the calendar without a gap.
func (s *Service) Open(ctx context.Context, in OpenPeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		conflict, err := tx.RangeConflict(ctx, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if conflict {
			return ErrPeriodOverlap
		}
		latest, err := tx.LatestEndDate(ctx)
		if err != nil {
			return err
		}
		if latest != nil && !in.StartDate.Equal(latest.AddDate(0, 0, 1)) {
			return ErrPeriodGap
		}
		period, err = tx.Insert(ctx, in)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, in.ActorID, "period.open", period.ID, map[string]any{"name": period.Name})
	return period, nil
}

// BeginClose transitions an open period to closing. Posting into the
// period is rejected from this point on.
func (s *Service) BeginClose(ctx context.Context, periodID, actorID int64) (Period, error) {
	var period Period
	var ev events.Event
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodStatusOpen {
			return accshared.ErrInvalidStatus
		}
		p.Status = PeriodStatusClosing
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		ev = events.PeriodClosing(p.ID, p.Name, s.now())
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		period = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.emitter.Publish(ctx, ev)
	s.record(ctx, actorID, "period.begin_close", period.ID, nil)
	return period, nil
}

// FinalizeClose transitions a closing period to closed after verifying no
// draft entries remain dated inside it.
func (s *Service) FinalizeClose(ctx context.Context, periodID, actorID int64) (Period, error) {
	var period Period
	var ev events.Event
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodStatusClosing {
			return accshared.ErrInvalidStatus
		}
		drafts, err := tx.CountDrafts(ctx, p.StartDate, p.EndDate)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return fmt.Errorf("%w: %d drafts", accshared.ErrDraftsInPeriod, drafts)
		}
		now := s.now()
		p.Status = PeriodStatusClosed
		p.ClosedBy = &actorID
		p.ClosedAt = &now
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		ev = events.PeriodClosed(p.ID, p.Name, now)
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		period = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.emitter.Publish(ctx, ev)
	s.record(ctx, actorID, "period.finalize_close", period.ID, nil)
	return period, nil
}

// Reopen returns a closed period to open. This is an administrative
// operation and always writes an audit record.
func (s *Service) Reopen(ctx context.Context, periodID, actorID int64, reason string) (Period, error) {
	if reason == "" {
		return Period{}, errors.New("periods: reopen reason required")
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodStatusClosed {
			return accshared.ErrInvalidStatus
		}
		now := s.now()
		p.Status = PeriodStatusOpen
		p.ReopenedBy = &actorID
		p.ReopenedAt = &now
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		period = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actorID, "period.reopen", period.ID, map[string]any{"reason": reason})
	return period, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, periodID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "period",
		EntityID: fmt.Sprintf("%d", periodID),
		Meta:     meta,
		At:       s.now(),
	})
}
