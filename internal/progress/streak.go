// AngelaMos | 2026
// streak.go

package progress

import (
	"time"
)

type StreakStatus string

const (
	StreakNone   StreakStatus = "none"
	StreakActive StreakStatus = "active"
	StreakBroken StreakStatus = "broken"
)

// Day is a calendar date in loc, stored as UTC midnight so it round-trips
// through a DATE column unchanged.
func Day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(Day(to, time.UTC).Sub(Day(from, time.UTC)).Hours() / 24)
}

type Streak struct {
	Current    int
	Best       int
	LastActive *time.Time
}

// Touch records activity on today. Repeat activity on the same day is a
// no-op and clocks that step backwards never shrink the streak.
func (s Streak) Touch(today time.Time) Streak {
	next := s
	day := Day(today, time.UTC)

	switch {
	case s.LastActive == nil:
		next.Current = 1
	default:
		gap := daysBetween(*s.LastActive, day)
		switch {
		case gap <= 0:
			return s
		case gap == 1:
			next.Current = s.Current + 1
		default:
			next.Current = 1
		}
	}

	next.LastActive = &day
	if next.Current > next.Best {
		next.Best = next.Current
	}
	return next
}

// View reports the streak as of today without writing anything.
func (s Streak) View(today time.Time) (int, StreakStatus) {
	if s.LastActive == nil {
		return 0, StreakNone
	}
	if daysBetween(*s.LastActive, today) > 1 {
		return 0, StreakBroken
	}
	return s.Current, StreakActive
}
