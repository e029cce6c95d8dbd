package noteservice

import (
	"time"

	"github.com/starford/hashnote/internal/models"
)

// ComputeStreak derives streak statistics from the times a tag was used.
// Days are counted in loc. The current streak is the run of consecutive days
// ending today, or yesterday when there is no check-in yet today.
func ComputeStreak(times []time.Time, now time.Time, loc *time.Location) models.Streak {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[int64]struct{}, len(times))
	var last int64
	for i, t := range times {
		d := dayNumber(t, loc)
		days[d] = struct{}{}
		if i == 0 || d > last {
			last = d
		}
	}
	if len(days) == 0 {
		return models.Streak{}
	}

	st := models.Streak{
		TotalDays:   len(days),
		LastCheckIn: time.Unix(last*secondsPerDay, 0).UTC().Format(time.DateOnly),
	}

	for d := range days {
		// Runs are measured from their first day only.
		if _, ok := days[d-1]; ok {
			continue
		}
		run := int64(1)
		for _, ok := days[d+run]; ok; _, ok = days[d+run] {
			run++
		}
		st.Longest = max(st.Longest, int(run))
	}

	today := dayNumber(now, loc)
	_, st.CheckedInToday = days[today]
	cursor := today
	if !st.CheckedInToday {
		cursor--
	}
	for _, ok := days[cursor]; ok; _, ok = days[cursor] {
		st.Current++
		cursor--
	}
	return st
}

const secondsPerDay = 24 * 60 * 60

// dayNumber returns the civil date of t in loc as days since the Unix epoch.
// Midnight UTC is a whole number of days from the epoch, so the division is
// exact for dates on either side of 1970.
func dayNumber(t time.Time, loc *time.Location) int64 {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}
