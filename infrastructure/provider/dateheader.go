package provider

import (
	"fmt"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDateHeader converts a rendered history-feed section header such as
// "Today", "Yesterday", "Jan 26, 2024", "Jan 26" or "Thursday" into the unix
// second of that day's midnight in the given UTC offset. Returns false when
// the header cannot be interpreted; the caller decides the fallback.
//
// A "Jan 26" header carries no year. The feed is reverse-chronological, so
// a date that would land in the future belongs to the previous year.
// A bare weekday always means the most recent past occurrence, never today.
func ParseDateHeader(header string, tzOffsetHours int, now time.Time) (int64, bool) {
	loc := time.FixedZone(fmt.Sprintf("UTC%+d", tzOffsetHours), tzOffsetHours*3600)
	local := now.In(loc)
	trimmed := strings.TrimSpace(header)
	lower := strings.ToLower(trimmed)

	switch lower {
	case "today":
		return midnight(local).Unix(), true
	case "yesterday":
		return midnight(local.AddDate(0, 0, -1)).Unix(), true
	}

	if wd, ok := weekdays[lower]; ok {
		back := (int(local.Weekday()) - int(wd) + 7) % 7
		if back == 0 {
			back = 7
		}
		return midnight(local.AddDate(0, 0, -back)).Unix(), true
	}

	for _, layout := range []string{"Jan 2, 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).Unix(), true
		}
	}

	for _, layout := range []string{"Jan 2", "January 2"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			day := time.Date(local.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
			if day.After(local) {
				day = day.AddDate(-1, 0, 0)
			}
			return day.Unix(), true
		}
	}

	return 0, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
