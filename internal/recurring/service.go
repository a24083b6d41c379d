package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// JournalPort is the slice of the posting engine the scheduler needs.
type JournalPort interface {
	CreateDraft(ctx context.Context, in journals.DraftInput) (journals.JournalEntry, error)
	CreateAndPost(ctx context.Context, in journals.DraftInput, actorID int64) (journals.JournalEntry, error)
}

// AuditPort records who changed what.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RunSummary reports the outcome of one scheduler tick.
type RunSummary struct {
	Due       int
	Created   int
	Posted    int
	Skipped   int
	Failed    int
	Completed int
}

// Service owns template lifecycle and the scheduler tick.
type Service struct {
	repo    Repository
	journal JournalPort
	audit   AuditPort
	emitter events.Publisher
	now     func() time.Time
}

func NewService(repo Repository, journal JournalPort, audit AuditPort, emitter events.Publisher) *Service {
	if emitter == nil {
		emitter = events.NopPublisher{}
	}
	return &Service{repo: repo, journal: journal, audit: audit, emitter: emitter, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a new template. The first run date is the start date.
func (s *Service) Create(ctx context.Context, in CreateTemplateInput) (Template, error) {
	if err := in.Validate(); err != nil {
		return Template{}, err
	}
	var created Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, in)
		return err
	})
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, in.CreatedBy, "recurring.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// Get returns one template with its body.
func (s *Service) Get(ctx context.Context, id int64) (Template, error) {
	return s.repo.Get(ctx, id)
}

// List returns all templates.
func (s *Service) List(ctx context.Context) ([]Template, error) {
	return s.repo.List(ctx)
}

// Pause stops an active template from running.
func (s *Service) Pause(ctx context.Context, id, actorID int64) (Template, error) {
	return s.transition(ctx, id, actorID, TemplateStatusActive, TemplateStatusPaused, "recurring.pause")
}

// Resume reactivates a paused template.
func (s *Service) Resume(ctx context.Context, id, actorID int64) (Template, error) {
	return s.transition(ctx, id, actorID, TemplateStatusPaused, TemplateStatusActive, "recurring.resume")
}

// Cancel permanently retires a template. Entries it produced are kept.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) (Template, error) {
	var out Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status == TemplateStatusCompleted || t.Status == TemplateStatusCancelled {
			return fmt.Errorf("%w: status %s", ErrTemplateNotActive, t.Status)
		}
		t.Status = TemplateStatusCancelled
		t.UpdatedAt = s.now()
		if err := tx.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, actorID, "recurring.cancel", id, nil)
	return out, nil
}

func (s *Service) transition(ctx context.Context, id, actorID int64, from, to TemplateStatus, action string) (Template, error) {
	var out Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != from {
			return fmt.Errorf("%w: status %s", ErrTemplateNotActive, t.Status)
		}
		t.Status = to
		t.UpdatedAt = s.now()
		if err := tx.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, actorID, action, id, nil)
	return out, nil
}

// RunDue materialises every due occurrence. Each template is processed
// independently so one failure never blocks the rest; a failed template
// keeps its next run date and is retried on the following tick. Creating
// the entry and advancing the template are two steps guarded by the
// occurrence uniqueness key, so a crash between them is repaired on the
// next tick instead of double-booking.
func (s *Service) RunDue(ctx context.Context, runBy int64) (RunSummary, error) {
	now := s.now()
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return RunSummary{}, err
	}
	actions := Plan(now, due)
	byID := make(map[int64]Template, len(due))
	for _, t := range due {
		byID[t.ID] = t
	}

	var sum RunSummary
	sum.Due = len(actions)
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		tpl, ok := byID[action.TemplateID]
		if !ok {
			continue
		}
		outcome, err := s.runOne(ctx, tpl, action, runBy)
		if err != nil {
			sum.Failed++
			ev := events.RecurringJournalFailed(tpl.ID, action.OccurrenceDate, err.Error(), now)
			if appendErr := s.appendFailure(ctx, ev); appendErr == nil {
				s.emitter.Publish(ctx, ev)
			}
			continue
		}
		switch outcome {
		case outcomePosted:
			sum.Created++
			sum.Posted++
		case outcomeDrafted:
			sum.Created++
		case outcomeSkipped:
			sum.Skipped++
		}
		completed, err := s.advance(ctx, tpl.ID, action.OccurrenceDate)
		if err != nil {
			sum.Failed++
			continue
		}
		if completed {
			sum.Completed++
		}
	}
	return sum, nil
}

type runOutcome int

const (
	outcomeDrafted runOutcome = iota
	outcomePosted
	outcomeSkipped
)

func (s *Service) runOne(ctx context.Context, tpl Template, action Action, runBy int64) (runOutcome, error) {
	in := s.draftFor(tpl, action, runBy)
	var err error
	if action.AutoPost {
		_, err = s.journal.CreateAndPost(ctx, in, runBy)
	} else {
		_, err = s.journal.CreateDraft(ctx, in)
	}
	if errors.Is(err, journals.ErrDuplicateOccurrence) {
		// Already materialised by an earlier tick that crashed before
		// advancing the template. Advance now.
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, err
	}
	if action.AutoPost {
		return outcomePosted, nil
	}
	return outcomeDrafted, nil
}

// draftFor translates the template body into a posting engine draft.
func (s *Service) draftFor(tpl Template, action Action, runBy int64) journals.DraftInput {
	lines := make([]journals.LineInput, 0, len(tpl.Lines))
	for _, l := range tpl.Lines {
		li := journals.LineInput{AccountID: l.AccountID, Description: l.Description}
		if l.Side == money.SideDebit {
			li.Debit = l.Amount
		} else {
			li.Credit = l.Amount
		}
		lines = append(lines, li)
	}
	templateID := tpl.ID
	occurrence := action.OccurrenceDate
	return journals.DraftInput{
		Date:                action.OccurrenceDate,
		Source:              journals.SourceRecurring,
		Description:         fmt.Sprintf("%s (%s)", tpl.Name, action.OccurrenceDate.Format("2006-01-02")),
		Reference:           fmt.Sprintf("RJ-%d", tpl.ID),
		IdempotencyKey:      fmt.Sprintf("recurring:%d:%s", tpl.ID, action.OccurrenceDate.Format("2006-01-02")),
		RecurringTemplateID: &templateID,
		OccurrenceDate:      &occurrence,
		CreatedBy:           runBy,
		Lines:               lines,
	}
}

// advance moves the template to its next run date and applies the end
// policy. It re-reads the row under lock and checks the run date so two
// concurrent ticks cannot advance twice. Returns whether the template
// completed.
func (s *Service) advance(ctx context.Context, templateID int64, occurrence time.Time) (bool, error) {
	completed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetForUpdate(ctx, templateID)
		if err != nil {
			return err
		}
		if !midnight(t.NextRunDate).Equal(occurrence) {
			// Another tick already advanced it.
			return nil
		}
		t.TotalOccurrences++
		t.NextRunDate = NextRun(t.Frequency, t.Interval, t.StartDate, t.NextRunDate)
		if done(t) {
			t.Status = TemplateStatusCompleted
			completed = true
		}
		t.UpdatedAt = s.now()
		return tx.Update(ctx, t)
	})
	return completed, err
}

func done(t Template) bool {
	switch t.EndPolicy {
	case EndAfterOccurrences:
		return t.TotalOccurrences >= t.EndAfter
	case EndOnDate:
		return t.EndDate != nil && midnight(t.NextRunDate).After(midnight(*t.EndDate))
	}
	return false
}

func (s *Service) appendFailure(ctx context.Context, ev events.Event) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.AppendEvent(ctx, ev)
	})
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "recurring_template",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
