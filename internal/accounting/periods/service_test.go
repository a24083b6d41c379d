package periods

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/events"
)

type memoryPeriods struct {
	nextID  int64
	periods map[int64]Period
	drafts  map[string]int
	events  []events.Event
}

func newMemoryPeriods() *memoryPeriods {
	return &memoryPeriods{periods: map[int64]Period{}, drafts: map[string]int{}}
}

func (m *memoryPeriods) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryPeriods) List(_ context.Context) ([]Period, error) {
	out := make([]Period, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *memoryPeriods) FindByDate(_ context.Context, date time.Time) (Period, error) {
	for _, p := range m.periods {
		if p.Contains(date) {
			return p, nil
		}
	}
	return Period{}, accshared.ErrPeriodNotFound
}

func (m *memoryPeriods) Insert(_ context.Context, in OpenPeriodInput) (Period, error) {
	m.nextID++
	p := Period{
		ID: m.nextID, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate,
		Status: PeriodStatusOpen,
	}
	m.periods[p.ID] = p
	return p, nil
}

func (m *memoryPeriods) GetForUpdate(_ context.Context, id int64) (Period, error) {
	p, ok := m.periods[id]
	if !ok {
		return Period{}, accshared.ErrPeriodNotFound
	}
	return p, nil
}

func (m *memoryPeriods) LatestEndDate(_ context.Context) (*time.Time, error) {
	var latest *time.Time
	for _, p := range m.periods {
		end := p.EndDate
		if latest == nil || end.After(*latest) {
			latest = &end
		}
	}
	return latest, nil
}

func (m *memoryPeriods) RangeConflict(_ context.Context, start, end time.Time) (bool, error) {
	for _, p := range m.periods {
		if !end.Before(p.StartDate) && !start.After(p.EndDate) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryPeriods) CountDrafts(_ context.Context, start, end time.Time) (int, error) {
	return m.drafts[start.Format("2006-01-02")], nil
}

func (m *memoryPeriods) Update(_ context.Context, p Period) error {
	if _, ok := m.periods[p.ID]; !ok {
		return accshared.ErrPeriodNotFound
	}
	m.periods[p.ID] = p
	return nil
}

func (m *memoryPeriods) AppendEvent(_ context.Context, ev events.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func periodFixture(t *testing.T) (*Service, *memoryPeriods, *capturePublisher) {
	t.Helper()
	repo := newMemoryPeriods()
	pub := &capturePublisher{}
	svc := NewService(repo, nil, pub)
	svc.WithNow(func() time.Time {
		return time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	})
	return svc, repo, pub
}

type capturePublisher struct {
	published []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) {
	p.published = append(p.published, ev)
}

func januaryInput() OpenPeriodInput {
	return OpenPeriodInput{
		Name:      "2024-01",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		ActorID:   1,
	}
}

func februaryInput() OpenPeriodInput {
	return OpenPeriodInput{
		Name:      "2024-02",
		StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		ActorID:   1,
	}
}

func TestOpenContiguousCalendar(t *testing.T) {
	svc, _, _ := periodFixture(t)
	ctx := context.Background()

	jan, err := svc.Open(ctx, januaryInput())
	require.NoError(t, err)
	require.Equal(t, PeriodStatusOpen, jan.Status)

	_, err = svc.Open(ctx, februaryInput())
	require.NoError(t, err)

	t.Run("gap rejected", func(t *testing.T) {
		_, err := svc.Open(ctx, OpenPeriodInput{
			Name:      "2024-04",
			StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
			ActorID:   1,
		})
		require.ErrorIs(t, err, ErrPeriodGap)
	})

	t.Run("overlap rejected", func(t *testing.T) {
		_, err := svc.Open(ctx, OpenPeriodInput{
			Name:      "2024-01b",
			StartDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			ActorID:   1,
		})
		require.ErrorIs(t, err, ErrPeriodOverlap)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		in := OpenPeriodInput{
			Name:      "2024-03",
			StartDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			ActorID:   1,
		}
		_, err := svc.Open(ctx, in)
		require.Error(t, err)
	})
}

func TestCloseLifecycle(t *testing.T) {
	svc, repo, pub := periodFixture(t)
	ctx := context.Background()

	jan, err := svc.Open(ctx, januaryInput())
	require.NoError(t, err)

	closing, err := svc.BeginClose(ctx, jan.ID, 7)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusClosing, closing.Status)
	require.Len(t, repo.events, 1)
	require.Equal(t, events.TypePeriodClosing, repo.events[0].Type)
	require.Len(t, pub.published, 1)

	closed, err := svc.FinalizeClose(ctx, jan.ID, 7)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedBy)
	require.Equal(t, int64(7), *closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)
	require.Equal(t, events.TypePeriodClosed, repo.events[1].Type)

	t.Run("begin close requires open", func(t *testing.T) {
		_, err := svc.BeginClose(ctx, jan.ID, 7)
		require.ErrorIs(t, err, accshared.ErrInvalidStatus)
	})

	t.Run("finalize requires closing", func(t *testing.T) {
		_, err := svc.FinalizeClose(ctx, jan.ID, 7)
		require.ErrorIs(t, err, accshared.ErrInvalidStatus)
	})
}

func TestFinalizeBlockedByDrafts(t *testing.T) {
	svc, repo, _ := periodFixture(t)
	ctx := context.Background()

	jan, err := svc.Open(ctx, januaryInput())
	require.NoError(t, err)
	_, err = svc.BeginClose(ctx, jan.ID, 1)
	require.NoError(t, err)

	repo.drafts[jan.StartDate.Format("2006-01-02")] = 2
	_, err = svc.FinalizeClose(ctx, jan.ID, 1)
	require.ErrorIs(t, err, accshared.ErrDraftsInPeriod)

	// Still closing; resolving the drafts unblocks the close.
	got, err := svc.FindByDate(ctx, jan.StartDate)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusClosing, got.Status)

	delete(repo.drafts, jan.StartDate.Format("2006-01-02"))
	_, err = svc.FinalizeClose(ctx, jan.ID, 1)
	require.NoError(t, err)
}

func TestReopen(t *testing.T) {
	svc, _, _ := periodFixture(t)
	ctx := context.Background()

	jan, err := svc.Open(ctx, januaryInput())
	require.NoError(t, err)
	_, err = svc.BeginClose(ctx, jan.ID, 1)
	require.NoError(t, err)
	_, err = svc.FinalizeClose(ctx, jan.ID, 1)
	require.NoError(t, err)

	t.Run("reason required", func(t *testing.T) {
		_, err := svc.Reopen(ctx, jan.ID, 2, "")
		require.Error(t, err)
	})

	reopened, err := svc.Reopen(ctx, jan.ID, 2, "late vendor invoice")
	require.NoError(t, err)
	require.Equal(t, PeriodStatusOpen, reopened.Status)
	require.NotNil(t, reopened.ReopenedBy)
	require.Equal(t, int64(2), *reopened.ReopenedBy)

	t.Run("reopen requires closed", func(t *testing.T) {
		_, err := svc.Reopen(ctx, jan.ID, 2, "again")
		require.ErrorIs(t, err, accshared.ErrInvalidStatus)
	})
}

func TestFindByDate(t *testing.T) {
	svc, _, _ := periodFixture(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, januaryInput())
	require.NoError(t, err)
	_, err = svc.Open(ctx, februaryInput())
	require.NoError(t, err)

	p, err := svc.FindByDate(ctx, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "2024-02", p.Name)

	_, err = svc.FindByDate(ctx, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, accshared.ErrPeriodNotFound)
}
