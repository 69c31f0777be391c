package entries

import (
	"fmt"
	"regexp"

	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/timecalc"
)

// DefaultMarkerPattern matches a card link; its group captures the short link.
const DefaultMarkerPattern = `trello\.com/c/([a-zA-Z0-9]+)`

// Marker recognises the reference link that makes an entry invoiceable.
type Marker struct {
	re *regexp.Regexp
}

// NewMarker compiles pattern. The first capture group, if any, is the short
// link; without one the whole match is used.
func NewMarker(pattern string) (Marker, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Marker{}, fmt.Errorf("invalid marker pattern %q: %w", pattern, err)
	}
	return Marker{re: re}, nil
}

// DefaultMarker matches card links.
var DefaultMarker = Marker{re: regexp.MustCompile(DefaultMarkerPattern)}

// Matches reports whether description carries the reference link.
func (m Marker) Matches(description string) bool {
	return m.re != nil && m.re.MatchString(description)
}

// ShortLink returns the card short link embedded in description.
func (m Marker) ShortLink(description string) (string, bool) {
	if m.re == nil {
		return "", false
	}
	match := m.re.FindStringSubmatch(description)
	switch {
	case match == nil:
		return "", false
	case len(match) > 1:
		return match[1], true
	default:
		return match[0], true
	}
}

// Predicate selects entries for a sum.
type Predicate func(model.TimeEntry) bool

// All selects every entry.
func All() Predicate {
	return func(model.TimeEntry) bool { return true }
}

// InWeek selects entries whose timestamp falls in ISO week w of w.Year.
func InWeek(w model.WeekWindow) Predicate {
	return func(e model.TimeEntry) bool {
		ts, ok := e.Timestamp()
		return ok && timecalc.WeekOf(ts) == w
	}
}

// Invoiceable selects entries whose description carries the marker.
func Invoiceable(m Marker) Predicate {
	return func(e model.TimeEntry) bool { return m.Matches(e.Description) }
}

// ForUser selects entries logged by user id.
func ForUser(id int64) Predicate {
	return func(e model.TimeEntry) bool { return e.UserID == id }
}

// And selects entries accepted by every predicate.
func And(preds ...Predicate) Predicate {
	return func(e model.TimeEntry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// SumDuration adds the durations of the entries accepted by every predicate.
func SumDuration(entries []model.TimeEntry, preds ...Predicate) int64 {
	accept := And(preds...)
	var total int64
	for _, e := range entries {
		if accept(e) {
			total += e.DurationSeconds
		}
	}
	return total
}

// CumulativeSeconds is the total recorded time to date, regardless of week
// or marker.
func CumulativeSeconds(entries []model.TimeEntry) int64 {
	return SumDuration(entries, All())
}

// WeekSeconds is the invoiceable time recorded within week w.
func WeekSeconds(entries []model.TimeEntry, w model.WeekWindow, m Marker) int64 {
	return SumDuration(entries, InWeek(w), Invoiceable(m))
}
