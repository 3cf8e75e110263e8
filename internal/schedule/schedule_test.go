package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-09 is a Tuesday.
func tue(hour, min int) time.Time {
	return time.Date(2024, 1, 9, hour, min, 0, 0, time.UTC)
}

func TestRecurringIsDue(t *testing.T) {
	s := &Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Tuesday}, Hour: 14, Minute: 30}

	assert.False(t, s.IsDue(tue(14, 29), nil), "one minute early")
	assert.True(t, s.IsDue(tue(14, 30), nil), "exactly on time")
	assert.True(t, s.IsDue(tue(16, 0), nil), "later the same day")

	sentAfter := tue(14, 31)
	assert.False(t, s.IsDue(tue(16, 0), &sentAfter), "already sent this occurrence")

	sentBefore := tue(10, 0)
	assert.True(t, s.IsDue(tue(16, 0), &sentBefore), "last send predates the occurrence")
}

func TestRecurringBacklogOnlyMostRecentOccurrenceFires(t *testing.T) {
	s := &Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Tuesday}, Hour: 14, Minute: 30}

	// Evaluator comes back on Thursday after missing Tuesday.
	thursday := time.Date(2024, 1, 11, 10, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	assert.True(t, s.IsDue(thursday, &lastWeek))

	occ, ok := s.lastOccurrence(thursday)
	require.True(t, ok)
	assert.Equal(t, tue(14, 30), occ, "only the single most recent occurrence is considered")

	sentTuesday := tue(15, 0)
	assert.False(t, s.IsDue(thursday, &sentTuesday))
}

func TestRecurringNotDueBeforeTimeOfDay(t *testing.T) {
	s := &Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Tuesday}, Hour: 14, Minute: 30}

	// On the scheduled weekday ahead of the configured time, nothing
	// has occurred yet; last week's occurrence must not leak in.
	_, ok := s.lastOccurrence(tue(14, 0))
	assert.False(t, ok)
	assert.False(t, s.IsDue(tue(14, 0), nil))

	twoWeeksAgo := time.Date(2023, 12, 26, 15, 0, 0, 0, time.UTC)
	assert.False(t, s.IsDue(tue(14, 0), &twoWeeksAgo), "stale lastSent must not trigger an early send")
}

func TestRecurringNoWeekdaysNeverDue(t *testing.T) {
	s := &Schedule{Type: Recurring, Hour: 14, Minute: 30}
	assert.False(t, s.IsDue(tue(16, 0), nil))
	_, ok := s.NextOccurrence(tue(16, 0))
	assert.False(t, ok)
}

func TestRecurringNextOccurrence(t *testing.T) {
	s := &Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Tuesday}, Hour: 14, Minute: 30}

	next, ok := s.NextOccurrence(tue(14, 0))
	require.True(t, ok)
	assert.Equal(t, tue(14, 30), next, "same day when the time has not passed yet")

	next, ok = s.NextOccurrence(tue(15, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC), next, "following Tuesday otherwise")
}

func TestRecurringMultipleWeekdays(t *testing.T) {
	s := &Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Monday, time.Friday}, Hour: 9, Minute: 0}
	assert.Equal(t, "0 9 * * 1,5", s.cronSpec())

	next, ok := s.NextOccurrence(tue(12, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC), next, "Friday comes before next Monday")
}

func TestScheduledOnce(t *testing.T) {
	sendDate := tue(14, 30)
	s := &Schedule{Type: ScheduledOnce, SendDate: &sendDate}

	assert.False(t, s.IsDue(tue(14, 29), nil))
	assert.True(t, s.IsDue(tue(14, 30), nil))
	assert.True(t, s.IsDue(tue(18, 0), nil))

	sent := tue(14, 35)
	assert.False(t, s.IsDue(tue(18, 0), &sent), "one-off never fires twice")

	next, ok := s.NextOccurrence(tue(10, 0))
	require.True(t, ok)
	assert.Equal(t, sendDate, next)

	_, ok = s.NextOccurrence(tue(18, 0))
	assert.False(t, ok, "no occurrence once the date has passed")
}

func TestImmediate(t *testing.T) {
	s := &Schedule{Type: Immediate}
	now := tue(12, 0)

	assert.True(t, s.IsDue(now, nil))
	sent := tue(11, 0)
	assert.False(t, s.IsDue(now, &sent))

	next, ok := s.NextOccurrence(now)
	require.True(t, ok)
	assert.Equal(t, now, next)
}

func TestValidate(t *testing.T) {
	sendDate := tue(14, 30)
	cases := []struct {
		name    string
		s       Schedule
		wantErr bool
	}{
		{"immediate", Schedule{Type: Immediate}, false},
		{"scheduled once", Schedule{Type: ScheduledOnce, SendDate: &sendDate}, false},
		{"scheduled once without date", Schedule{Type: ScheduledOnce}, true},
		{"recurring", Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Monday}, Hour: 9}, false},
		{"recurring hour out of range", Schedule{Type: Recurring, Hour: 24}, true},
		{"recurring minute out of range", Schedule{Type: Recurring, Minute: 60}, true},
		{"recurring bad weekday", Schedule{Type: Recurring, DaysOfWeek: []time.Weekday{time.Weekday(7)}}, true},
		{"unknown type", Schedule{Type: "hourly"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScanColumn(t *testing.T) {
	raw := []byte(`{"type": "recurring", "days_of_week": [2], "hour": 14, "minute": 30}`)

	var s Schedule
	require.NoError(t, s.Scan(raw))
	assert.Equal(t, Recurring, s.Type)
	assert.Equal(t, []time.Weekday{time.Tuesday}, s.DaysOfWeek)
	assert.Equal(t, 14, s.Hour)
	assert.Equal(t, 30, s.Minute)

	val, err := s.Value()
	require.NoError(t, err)
	var back Schedule
	require.NoError(t, json.Unmarshal(val.([]byte), &back))
	assert.Equal(t, s, back)

	assert.Error(t, s.Scan(42))
}
