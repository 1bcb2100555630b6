// Package display turns reminder dates and times into short labels for a
// small screen.
package display

import (
	"fmt"
	"time"

	"github.com/conorfennell/wristreminder/internal/domain"
)

// HumanizeDate describes date relative to now: Today, Tomorrow, Yesterday,
// a weekday name in the current week, "Last"/"Next" weekday for the adjacent
// weeks and "Jan 2, 2006" otherwise. Weeks are aligned to the first day of
// the year. Unparseable dates are returned unchanged.
func HumanizeDate(date string, now time.Time) string {
	d, err := time.ParseInLocation(domain.DateLayout, date, now.Location())
	if err != nil {
		return date
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch days := daysBetween(today, d); {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case sameWeek(today, d):
		return d.Weekday().String()
	case d.Before(today) && sameWeek(today.AddDate(0, 0, -7), d):
		return "Last " + d.Weekday().String()
	case d.After(today) && sameWeek(today.AddDate(0, 0, 7), d):
		return "Next " + d.Weekday().String()
	default:
		return d.Format("Jan 2, 2006")
	}
}

// HumanizeTime describes a wall-clock time on the current day relative to
// now: "Now", "In 5m", "5m ago", or the time itself when it is an hour or
// more away.
func HumanizeTime(hhmm string, now time.Time) string {
	t, err := time.Parse(domain.TimeLayout, hhmm)
	if err != nil {
		return hhmm
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())

	switch minutes := int(at.Sub(now) / time.Minute); {
	case minutes == 0:
		return "Now"
	case minutes > 0 && minutes < 60:
		return fmt.Sprintf("In %dm", minutes)
	case minutes < 0 && minutes > -60:
		return fmt.Sprintf("%dm ago", -minutes)
	default:
		return at.Format(domain.TimeLayout)
	}
}

// daysBetween counts calendar days from a to b, both at midnight.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func sameWeek(a, b time.Time) bool {
	return a.Year() == b.Year() && alignedWeek(a) == alignedWeek(b)
}

func alignedWeek(t time.Time) int {
	return (t.YearDay()-1)/7 + 1
}
