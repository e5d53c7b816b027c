package utils

import (
	"strconv"
	"time"
)

// FormatRelativeTime renders a creation instant the way the feed displays it:
// "now", minutes, hours, days, then an absolute short date past one week.
func FormatRelativeTime(t time.Time) string {
	return formatRelativeAt(t, time.Now())
}

func formatRelativeAt(t, now time.Time) string {
	if t.IsZero() {
		return "now"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return strconv.Itoa(int(diff.Minutes())) + "min"
	case diff < 24*time.Hour:
		return strconv.Itoa(int(diff.Hours())) + "h"
	case diff < 7*24*time.Hour:
		return strconv.Itoa(int(diff.Hours()/24)) + "d"
	default:
		return t.Format("Jan 2")
	}
}
