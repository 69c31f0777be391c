package timecalc

import (
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/billr/internal/model"
)

const dayLayout = "2006-01-02"

// thursdayOf returns UTC midnight of the Thursday in the Monday-based week
// containing the calendar day of t.
func thursdayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7 // treat Sunday as 7 (ISO)
	}
	return d.AddDate(0, 0, 4-wd)
}

// WeekNumberOf returns the ISO week number of the calendar day of t.
// The week containing the year's first Thursday is week 1, so late December
// days may belong to week 1 of the following year.
func WeekNumberOf(t time.Time) int {
	thu := thursdayOf(t)
	yearStart := time.Date(thu.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	days := thu.Sub(yearStart).Hours() / 24
	return int(math.Ceil((days + 1) / 7))
}

// WeekOf returns the ISO week of t together with its week-numbering year.
func WeekOf(t time.Time) model.WeekWindow {
	return model.WeekWindow{Year: thursdayOf(t).Year(), Week: WeekNumberOf(t)}
}

// MondayOf returns UTC midnight of the Monday that opens ISO week w.
func MondayOf(w model.WeekWindow) time.Time {
	// January 4th is always in week 1.
	jan4 := time.Date(w.Year, 1, 4, 0, 0, 0, 0, time.UTC)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7
	}
	week1 := jan4.AddDate(0, 0, -(wd - 1))
	return week1.AddDate(0, 0, 7*(w.Week-1))
}

// WeeksInYear returns 52 or 53, the number of ISO weeks in year.
func WeeksInYear(year int) int {
	// December 28th is always in the last week.
	return WeekNumberOf(time.Date(year, 12, 28, 0, 0, 0, 0, time.UTC))
}

// PrevWeek returns the ISO week preceding w, crossing into the previous
// week-numbering year when w is week 1.
func PrevWeek(w model.WeekWindow) model.WeekWindow {
	return WeekOf(MondayOf(w).AddDate(0, 0, -7))
}

// DateRange returns the first and last calendar day, as YYYY-MM-DD, of the
// weekNumber-th seven-day block counted from January 1st of year. The blocks
// are anchored on January 1st, not on ISO Mondays.
func DateRange(year, weekNumber int) (start, end string) {
	first := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(weekNumber-1))
	last := first.AddDate(0, 0, 6)
	return first.Format(dayLayout), last.Format(dayLayout)
}

// DateRangeOf is DateRange against the current calendar year.
func DateRangeOf(weekNumber int) (start, end string) {
	return DateRange(time.Now().Year(), weekNumber)
}

// WeekRange returns Monday and Sunday of ISO week w as YYYY-MM-DD.
func WeekRange(w model.WeekWindow) (start, end string) {
	monday := MondayOf(w)
	return monday.Format(dayLayout), monday.AddDate(0, 0, 6).Format(dayLayout)
}

// SecondsToMinutes converts a duration in seconds to minutes.
func SecondsToMinutes(seconds float64) float64 { return seconds / 60 }

// MinutesToHours converts a duration in minutes to hours.
func MinutesToHours(minutes float64) float64 { return minutes / 60 }

// SecondsToHours converts a duration in seconds to hours.
func SecondsToHours(seconds int64) float64 {
	return MinutesToHours(SecondsToMinutes(float64(seconds)))
}

// HoursToSeconds converts hours back to seconds.
func HoursToSeconds(hours float64) float64 { return hours * 3600 }

// SheetWeekLabel returns the spreadsheet row label for w, e.g. "09,2026".
func SheetWeekLabel(w model.WeekWindow) string {
	return fmt.Sprintf("%02d,%d", w.Week, w.Year)
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatHours formats fractional hours with two decimals.
func FormatHours(hours float64) string {
	return fmt.Sprintf("%.2fh", hours)
}

// ParseDay parses a YYYY-MM-DD day in UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}
