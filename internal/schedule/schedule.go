// internal/schedule/schedule.go
package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Type tags the schedule variant.
type Type string

const (
	Immediate     Type = "immediate"
	ScheduledOnce Type = "scheduledOnce"
	Recurring     Type = "recurring"
)

// Schedule decides when a sendout is eligible to run. It is stored as a
// JSON column on the sendout record.
type Schedule struct {
	Type       Type           `json:"type"`
	SendDate   *time.Time     `json:"send_date,omitempty"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	Hour       int            `json:"hour,omitempty"`
	Minute     int            `json:"minute,omitempty"`
}

// Validate rejects malformed schedules before any job is created.
func (s *Schedule) Validate() error {
	switch s.Type {
	case Immediate:
		return nil
	case ScheduledOnce:
		if s.SendDate == nil {
			return fmt.Errorf("schedule: scheduledOnce requires a send date")
		}
		return nil
	case Recurring:
		if s.Hour < 0 || s.Hour > 23 {
			return fmt.Errorf("schedule: hour %d out of range", s.Hour)
		}
		if s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("schedule: minute %d out of range", s.Minute)
		}
		for _, d := range s.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("schedule: invalid weekday %d", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("schedule: unknown type %q", s.Type)
	}
}

// IsDue reports whether the schedule has an occurrence that has not been
// sent yet at the given time. lastSent is the completion time of the most
// recent send, or nil if the sendout has never been sent.
//
// When the evaluator runs late, only the most recent missed occurrence
// triggers; older occurrences are never queued retroactively.
func (s *Schedule) IsDue(now time.Time, lastSent *time.Time) bool {
	switch s.Type {
	case Immediate:
		return lastSent == nil
	case ScheduledOnce:
		return s.SendDate != nil && !now.Before(*s.SendDate) && lastSent == nil
	case Recurring:
		occ, ok := s.lastOccurrence(now)
		if !ok {
			return false
		}
		return lastSent == nil || lastSent.Before(occ)
	default:
		return false
	}
}

// NextOccurrence computes the next send timestamp strictly after now.
// The second return value is false when no occurrence exists (a
// recurring schedule with no weekdays, or a one-off already in the past).
func (s *Schedule) NextOccurrence(now time.Time) (time.Time, bool) {
	switch s.Type {
	case Immediate:
		return now, true
	case ScheduledOnce:
		if s.SendDate == nil || now.After(*s.SendDate) {
			return time.Time{}, false
		}
		return *s.SendDate, true
	case Recurring:
		if len(s.DaysOfWeek) == 0 {
			return time.Time{}, false
		}
		spec, err := cron.ParseStandard(s.cronSpec())
		if err != nil {
			return time.Time{}, false
		}
		return spec.Next(now), true
	default:
		return time.Time{}, false
	}
}

// cronSpec renders the recurring fields as a standard cron expression,
// e.g. daysOfWeek={Tue}, 14:30 becomes "30 14 * * 2".
func (s *Schedule) cronSpec() string {
	days := make([]string, len(s.DaysOfWeek))
	for i, d := range s.DaysOfWeek {
		days[i] = strconv.Itoa(int(d))
	}
	return fmt.Sprintf("%d %d * * %s", s.Minute, s.Hour, strings.Join(days, ","))
}

// lastOccurrence finds the most recent occurrence at or before now.
// The configured hour and minute resolve in now's location, never the
// wall-clock time the evaluator happens to run at.
func (s *Schedule) lastOccurrence(now time.Time) (time.Time, bool) {
	if len(s.DaysOfWeek) == 0 {
		return time.Time{}, false
	}
	// Today plus the six prior days covers each weekday exactly once;
	// looking back further would resurface last week's occurrence.
	for back := 0; back < 7; back++ {
		day := now.AddDate(0, 0, -back)
		if !s.onDay(day.Weekday()) {
			continue
		}
		occ := time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, now.Location())
		if !occ.After(now) {
			return occ, true
		}
	}
	return time.Time{}, false
}

func (s *Schedule) onDay(d time.Weekday) bool {
	for _, w := range s.DaysOfWeek {
		if w == d {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer so a schedule can be stored in a JSON
// column directly.
func (s *Schedule) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Schedule) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("schedule: cannot scan %T", src)
	}
}
