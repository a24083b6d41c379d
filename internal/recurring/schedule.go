package recurring

import (
	"sort"
	"time"
)

// Action is one due occurrence the scheduler should materialize.
type Action struct {
	TemplateID     int64
	OccurrenceDate time.Time
	AutoPost       bool
}

// Plan returns one action per active template whose next run is due at
// or before now. Ties are broken by template id so a run over the same
// input always produces the same order.
func Plan(now time.Time, templates []Template) []Action {
	today := midnight(now)
	actions := make([]Action, 0, len(templates))
	for _, t := range templates {
		if t.Status != TemplateStatusActive {
			continue
		}
		if midnight(t.NextRunDate).After(today) {
			continue
		}
		actions = append(actions, Action{
			TemplateID:     t.ID,
			OccurrenceDate: midnight(t.NextRunDate),
			AutoPost:       t.AutoPost,
		})
	}
	sort.Slice(actions, func(i, j int) bool {
		if !actions[i].OccurrenceDate.Equal(actions[j].OccurrenceDate) {
			return actions[i].OccurrenceDate.Before(actions[j].OccurrenceDate)
		}
		return actions[i].TemplateID < actions[j].TemplateID
	})
	return actions
}

// NextRun advances current by one period. Month-based cadences clamp to
// the last day of short months while keeping the start date's day as the
// anchor, so a 31st-of-month schedule returns to the 31st after February.
func NextRun(freq Frequency, interval int, start, current time.Time) time.Time {
	if interval < 1 {
		interval = 1
	}
	cur := midnight(current)
	switch freq {
	case FrequencyDaily, FrequencyCustom:
		return cur.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return cur.AddDate(0, 0, 7*interval)
	case FrequencyBiweekly:
		return cur.AddDate(0, 0, 14*interval)
	case FrequencyMonthly:
		return addMonthsClamped(cur, interval, start.Day())
	case FrequencyQuarterly:
		return addMonthsClamped(cur, 3*interval, start.Day())
	case FrequencySemiAnnual:
		return addMonthsClamped(cur, 6*interval, start.Day())
	case FrequencyAnnual:
		return addMonthsClamped(cur, 12*interval, start.Day())
	}
	return cur.AddDate(0, 0, interval)
}

func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	y, m, _ := t.Date()
	m += time.Month(months)
	day := anchorDay
	if last := daysInMonth(y, m); day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
