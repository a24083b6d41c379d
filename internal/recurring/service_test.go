package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/events"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

type memoryTemplateRepo struct {
	nextID    int64
	templates map[int64]*Template
	events    []events.Event
}

func newMemoryTemplateRepo() *memoryTemplateRepo {
	return &memoryTemplateRepo{templates: map[int64]*Template{}}
}

func (m *memoryTemplateRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryTemplateRepo) Get(_ context.Context, id int64) (Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return *t, nil
}

func (m *memoryTemplateRepo) List(context.Context) ([]Template, error) {
	out := make([]Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memoryTemplateRepo) ListDue(_ context.Context, asOf time.Time) ([]Template, error) {
	var out []Template
	for _, t := range m.templates {
		if t.Status == TemplateStatusActive && !t.NextRunDate.After(asOf) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryTemplateRepo) Insert(_ context.Context, in CreateTemplateInput) (Template, error) {
	m.nextID++
	t := Template{
		ID:          m.nextID,
		Name:        in.Name,
		Frequency:   in.Frequency,
		Interval:    in.Interval,
		StartDate:   in.StartDate,
		EndPolicy:   in.EndPolicy,
		EndAfter:    in.EndAfter,
		EndDate:     in.EndDate,
		Status:      TemplateStatusActive,
		NextRunDate: in.StartDate,
		AutoPost:    in.AutoPost,
		CreatedBy:   in.CreatedBy,
		Lines:       in.Lines,
	}
	m.templates[t.ID] = &t
	return t, nil
}

func (m *memoryTemplateRepo) GetForUpdate(ctx context.Context, id int64) (Template, error) {
	return m.Get(ctx, id)
}

func (m *memoryTemplateRepo) Update(_ context.Context, t Template) error {
	if _, ok := m.templates[t.ID]; !ok {
		return ErrTemplateNotFound
	}
	stored := t
	m.templates[t.ID] = &stored
	return nil
}

func (m *memoryTemplateRepo) AppendEvent(_ context.Context, ev events.Event) error {
	m.events = append(m.events, ev)
	return nil
}

type fakeJournal struct {
	drafts    []journals.DraftInput
	posted    []journals.DraftInput
	failNext  error
	duplicate bool
}

func (f *fakeJournal) CreateDraft(_ context.Context, in journals.DraftInput) (journals.JournalEntry, error) {
	if err := f.take(); err != nil {
		return journals.JournalEntry{}, err
	}
	f.drafts = append(f.drafts, in)
	return journals.JournalEntry{ID: int64(len(f.drafts)), Status: journals.JournalStatusDraft}, nil
}

func (f *fakeJournal) CreateAndPost(_ context.Context, in journals.DraftInput, _ int64) (journals.JournalEntry, error) {
	if err := f.take(); err != nil {
		return journals.JournalEntry{}, err
	}
	f.posted = append(f.posted, in)
	return journals.JournalEntry{ID: int64(len(f.posted)), Status: journals.JournalStatusPosted}, nil
}

func (f *fakeJournal) take() error {
	if f.duplicate {
		f.duplicate = false
		return journals.ErrDuplicateOccurrence
	}
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

type capturePublisher struct {
	published []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev events.Event) {
	c.published = append(c.published, ev)
}

func rentBody() []TemplateLine {
	return []TemplateLine{
		{AccountID: 10, Side: money.SideDebit, Amount: decimal.RequireFromString("1500.00"), Description: "Office rent"},
		{AccountID: 20, Side: money.SideCredit, Amount: decimal.RequireFromString("1500.00")},
	}
}

func newRecurringHarness(t *testing.T) (*Service, *memoryTemplateRepo, *fakeJournal, *capturePublisher) {
	t.Helper()
	repo := newMemoryTemplateRepo()
	journal := &fakeJournal{}
	pub := &capturePublisher{}
	svc := NewService(repo, journal, nil, pub)
	return svc, repo, journal, pub
}

func TestCreateRejectsUnbalancedBody(t *testing.T) {
	svc, _, _, _ := newRecurringHarness(t)
	_, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Broken",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.January, 31),
		Lines: []TemplateLine{
			{AccountID: 10, Side: money.SideDebit, Amount: decimal.RequireFromString("100.00")},
			{AccountID: 20, Side: money.SideCredit, Amount: decimal.RequireFromString("99.00")},
		},
	})
	require.ErrorIs(t, err, ErrTemplateUnbalanced)
}

func TestRunDueCreatesDraftAndAdvances(t *testing.T) {
	svc, repo, journal, _ := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.January, 31) })

	tpl, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Monthly rent",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.January, 31),
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Due)
	require.Equal(t, 1, sum.Created)
	require.Equal(t, 0, sum.Posted)
	require.Equal(t, 0, sum.Failed)

	require.Len(t, journal.drafts, 1)
	draft := journal.drafts[0]
	require.Equal(t, journals.SourceRecurring, draft.Source)
	require.NotNil(t, draft.RecurringTemplateID)
	require.Equal(t, tpl.ID, *draft.RecurringTemplateID)
	require.NotNil(t, draft.OccurrenceDate)
	require.Equal(t, date(2026, time.January, 31), *draft.OccurrenceDate)
	require.Equal(t, "recurring:1:2026-01-31", draft.IdempotencyKey)

	stored, err := svc.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, date(2026, time.February, 28), stored.NextRunDate)
	require.Equal(t, 1, stored.TotalOccurrences)
	require.Empty(t, repo.events)
}

func TestRunDueAutoPosts(t *testing.T) {
	svc, _, journal, _ := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.March, 1) })

	_, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Depreciation",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.March, 1),
		AutoPost:  true,
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Posted)
	require.Len(t, journal.posted, 1)
	require.Empty(t, journal.drafts)
}

func TestRunDueNotYetDue(t *testing.T) {
	svc, _, journal, _ := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.January, 15) })

	_, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Future",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.February, 1),
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Due)
	require.Empty(t, journal.drafts)
}

func TestRunDueFailureKeepsNextRunAndEmits(t *testing.T) {
	svc, repo, journal, pub := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.April, 1) })

	tpl, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Flaky",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.April, 1),
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	journal.failNext = errors.New("account inactive")
	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 0, sum.Created)

	stored, err := svc.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, date(2026, time.April, 1), stored.NextRunDate)
	require.Equal(t, 0, stored.TotalOccurrences)

	require.Len(t, repo.events, 1)
	require.Equal(t, events.TypeRecurringJournalFailed, repo.events[0].Type)
	require.Len(t, pub.published, 1)

	// Next tick succeeds and advances.
	sum, err = svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Created)
	stored, err = svc.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, date(2026, time.May, 1), stored.NextRunDate)
}

func TestRunDueDuplicateOccurrenceAdvances(t *testing.T) {
	svc, _, journal, _ := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.May, 1) })

	tpl, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Replayed",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.May, 1),
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	journal.duplicate = true
	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Skipped)
	require.Equal(t, 0, sum.Failed)
	require.Empty(t, journal.drafts)

	stored, err := svc.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, date(2026, time.June, 1), stored.NextRunDate)
}

func TestRunDueCompletesAfterOccurrenceLimit(t *testing.T) {
	svc, _, _, _ := newRecurringHarness(t)
	clock := date(2026, time.January, 1)
	svc.WithNow(func() time.Time { return clock })

	tpl, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Two shots",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.January, 1),
		EndPolicy: EndAfterOccurrences,
		EndAfter:  2,
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Completed)

	clock = date(2026, time.February, 1)
	sum, err = svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Completed)

	stored, err := svc.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, TemplateStatusCompleted, stored.Status)
	require.Equal(t, 2, stored.TotalOccurrences)

	clock = date(2026, time.March, 1)
	sum, err = svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Due)
}

func TestRunDueCompletesOnEndDate(t *testing.T) {
	svc, _, _, _ := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.June, 30) })

	end := date(2026, time.June, 30)
	tpl, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Lease runoff",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.June, 30),
		EndPolicy: EndOnDate,
		EndDate:   &end,
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Completed)

	stored, err := svc.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, TemplateStatusCompleted, stored.Status)
}

func TestPauseResumeCancel(t *testing.T) {
	svc, _, _, _ := newRecurringHarness(t)
	svc.WithNow(func() time.Time { return date(2026, time.July, 1) })

	tpl, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:      "Toggle",
		Frequency: FrequencyMonthly,
		Interval:  1,
		StartDate: date(2026, time.July, 1),
		Lines:     rentBody(),
	})
	require.NoError(t, err)

	paused, err := svc.Pause(context.Background(), tpl.ID, 1)
	require.NoError(t, err)
	require.Equal(t, TemplateStatusPaused, paused.Status)

	sum, err := svc.RunDue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Due)

	resumed, err := svc.Resume(context.Background(), tpl.ID, 1)
	require.NoError(t, err)
	require.Equal(t, TemplateStatusActive, resumed.Status)

	cancelled, err := svc.Cancel(context.Background(), tpl.ID, 1)
	require.NoError(t, err)
	require.Equal(t, TemplateStatusCancelled, cancelled.Status)

	_, err = svc.Resume(context.Background(), tpl.ID, 1)
	require.ErrorIs(t, err, ErrTemplateNotActive)
}
