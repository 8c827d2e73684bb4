package view

import (
	"fmt"
	"time"
)

// FormatRelativeTime renders t relative to now, e.g. "5 minutes ago".
// Future timestamps collapse to "just now".
func FormatRelativeTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}

	diff := now.Sub(t)
	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return plural(int(diff/time.Minute), "minute")
	}
	if diff < 24*time.Hour {
		return plural(int(diff/time.Hour), "hour")
	}

	days := int(diff / (24 * time.Hour))
	switch {
	case days < 30:
		return plural(days, "day")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
