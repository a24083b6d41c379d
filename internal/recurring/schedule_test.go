package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextRunDayBased(t *testing.T) {
	start := date(2026, time.January, 1)
	cases := []struct {
		name     string
		freq     Frequency
		interval int
		current  time.Time
		want     time.Time
	}{
		{"daily", FrequencyDaily, 1, date(2026, time.January, 1), date(2026, time.January, 2)},
		{"custom 10 days", FrequencyCustom, 10, date(2026, time.January, 1), date(2026, time.January, 11)},
		{"weekly", FrequencyWeekly, 1, date(2026, time.January, 5), date(2026, time.January, 12)},
		{"weekly every 2", FrequencyWeekly, 2, date(2026, time.January, 5), date(2026, time.January, 19)},
		{"biweekly", FrequencyBiweekly, 1, date(2026, time.January, 5), date(2026, time.January, 19)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NextRun(tc.freq, tc.interval, start, tc.current))
		})
	}
}

func TestNextRunMonthEndClamping(t *testing.T) {
	start := date(2024, time.January, 31)

	// Short months clamp, later months return to the anchor day.
	feb := NextRun(FrequencyMonthly, 1, start, start)
	require.Equal(t, date(2024, time.February, 29), feb)

	mar := NextRun(FrequencyMonthly, 1, start, feb)
	require.Equal(t, date(2024, time.March, 31), mar)

	apr := NextRun(FrequencyMonthly, 1, start, mar)
	require.Equal(t, date(2024, time.April, 30), apr)

	may := NextRun(FrequencyMonthly, 1, start, apr)
	require.Equal(t, date(2024, time.May, 31), may)
}

func TestNextRunNonLeapFebruary(t *testing.T) {
	start := date(2026, time.January, 30)
	require.Equal(t, date(2026, time.February, 28), NextRun(FrequencyMonthly, 1, start, start))
}

func TestNextRunLongerCadences(t *testing.T) {
	start := date(2026, time.January, 31)
	require.Equal(t, date(2026, time.April, 30), NextRun(FrequencyQuarterly, 1, start, start))
	require.Equal(t, date(2026, time.July, 31), NextRun(FrequencySemiAnnual, 1, start, start))
	require.Equal(t, date(2027, time.January, 31), NextRun(FrequencyAnnual, 1, start, start))
	require.Equal(t, date(2026, time.March, 31), NextRun(FrequencyMonthly, 2, start, start))
}

func TestPlanFiltersAndOrders(t *testing.T) {
	now := date(2026, time.March, 15)
	templates := []Template{
		{ID: 3, Status: TemplateStatusActive, NextRunDate: date(2026, time.March, 15)},
		{ID: 1, Status: TemplateStatusActive, NextRunDate: date(2026, time.March, 15)},
		{ID: 2, Status: TemplateStatusActive, NextRunDate: date(2026, time.March, 1)},
		{ID: 4, Status: TemplateStatusActive, NextRunDate: date(2026, time.March, 16)},
		{ID: 5, Status: TemplateStatusPaused, NextRunDate: date(2026, time.March, 1)},
		{ID: 6, Status: TemplateStatusCompleted, NextRunDate: date(2026, time.March, 1)},
	}

	actions := Plan(now, templates)
	require.Len(t, actions, 3)
	require.Equal(t, int64(2), actions[0].TemplateID)
	require.Equal(t, int64(1), actions[1].TemplateID)
	require.Equal(t, int64(3), actions[2].TemplateID)
}

func TestPlanSameInputSameOrder(t *testing.T) {
	now := date(2026, time.June, 1)
	templates := []Template{
		{ID: 9, Status: TemplateStatusActive, NextRunDate: date(2026, time.May, 31)},
		{ID: 7, Status: TemplateStatusActive, NextRunDate: date(2026, time.May, 31)},
	}
	first := Plan(now, templates)
	second := Plan(now, templates)
	require.Equal(t, first, second)
}
