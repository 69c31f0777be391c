package entries_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/model"
)

var week9 = model.WeekWindow{Year: 2026, Week: 9}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func at(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}

func TestMarker_ShortLink(t *testing.T) {
	tests := []struct {
		desc string
		want string
		ok   bool
	}{
		{"fix login https://trello.com/c/AbC123/42-login", "AbC123", true},
		{"trello.com/c/x9", "x9", true},
		{"trello.com/b/AbC123", "", false},
		{"no link at all", "", false},
	}
	for _, tt := range tests {
		got, ok := entries.DefaultMarker.ShortLink(tt.desc)
		assert.Equal(t, tt.ok, ok, tt.desc)
		assert.Equal(t, tt.want, got, tt.desc)
		assert.Equal(t, tt.ok, entries.DefaultMarker.Matches(tt.desc), tt.desc)
	}
}

func TestMarker_WithoutGroupUsesWholeMatch(t *testing.T) {
	m, err := entries.NewMarker(`TICKET-[0-9]+`)
	require.NoError(t, err)

	got, ok := m.ShortLink("work on TICKET-17 today")
	assert.True(t, ok)
	assert.Equal(t, "TICKET-17", got)
}

func TestNewMarker_Invalid(t *testing.T) {
	_, err := entries.NewMarker(`(`)
	assert.Error(t, err)
}

func TestZeroMarkerMatchesNothing(t *testing.T) {
	var m entries.Marker
	assert.False(t, m.Matches("trello.com/c/AbC123"))
	_, ok := m.ShortLink("trello.com/c/AbC123")
	assert.False(t, ok)
}

func TestInWeek(t *testing.T) {
	tests := []struct {
		name string
		e    model.TimeEntry
		want bool
	}{
		{"date inside", model.TimeEntry{Date: day(2026, 2, 24)}, true},
		{"date on sunday", model.TimeEntry{Date: day(2026, 3, 1)}, true},
		{"date next monday", model.TimeEntry{Date: day(2026, 3, 2)}, false},
		{"same week other year", model.TimeEntry{Date: day(2025, 2, 25)}, false},
		{"start wins over end", model.TimeEntry{Start: at(2026, 3, 1, 23), End: at(2026, 3, 2, 1)}, true},
		{"start wins over date", model.TimeEntry{Start: at(2026, 3, 2, 9), Date: day(2026, 2, 24)}, false},
		{"end only", model.TimeEntry{End: at(2026, 2, 23, 10)}, true},
		{"no timestamp", model.TimeEntry{DurationSeconds: 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entries.InWeek(week9)(tt.e))
		})
	}
}

func TestInWeek_YearBoundary(t *testing.T) {
	// 2025-12-31 is a Wednesday in ISO week 1 of 2026.
	e := model.TimeEntry{Date: day(2025, 12, 31)}
	assert.True(t, entries.InWeek(model.WeekWindow{Year: 2026, Week: 1})(e))
	assert.False(t, entries.InWeek(model.WeekWindow{Year: 2025, Week: 1})(e))
}

func TestSums_MarkerScopesWeekOnly(t *testing.T) {
	m, err := entries.NewMarker(`tracker\.example/c/([a-zA-Z0-9]+)`)
	require.NoError(t, err)

	list := []model.TimeEntry{
		{ID: 1, DurationSeconds: 3600, Date: day(2026, 2, 24), Description: "see https://tracker.example/c/AbC123"},
		{ID: 2, DurationSeconds: 1800, Date: day(2026, 2, 25), Description: "meeting"},
		{ID: 3, DurationSeconds: 7200, Date: day(2026, 2, 10), Description: "see https://tracker.example/c/Old1"},
	}

	assert.Equal(t, int64(3600), entries.WeekSeconds(list, week9, m))
	assert.Equal(t, int64(12600), entries.CumulativeSeconds(list))

	// The default marker does not know this tracker.
	assert.Zero(t, entries.WeekSeconds(list, week9, entries.DefaultMarker))
}

func TestSumDuration_Predicates(t *testing.T) {
	list := []model.TimeEntry{
		{DurationSeconds: 10, ProjectID: 1},
		{DurationSeconds: 20, ProjectID: 2},
		{DurationSeconds: 30, ProjectID: 1},
	}
	project1 := func(e model.TimeEntry) bool { return e.ProjectID == 1 }
	never := func(model.TimeEntry) bool { return false }

	assert.Equal(t, int64(60), entries.SumDuration(list))
	assert.Equal(t, int64(60), entries.SumDuration(list, entries.All()))
	assert.Equal(t, int64(40), entries.SumDuration(list, project1))
	assert.Zero(t, entries.SumDuration(list, entries.And(project1, never)))
	assert.Zero(t, entries.SumDuration(nil, entries.All()))
}

func TestForUser(t *testing.T) {
	list := []model.TimeEntry{
		{UserID: 1, DurationSeconds: 3600, Date: day(2026, 2, 24)},
		{UserID: 2, DurationSeconds: 1800, Date: day(2026, 2, 24)},
		{UserID: 1, DurationSeconds: 600, Date: day(2026, 2, 10)},
	}
	assert.Equal(t, int64(3600), entries.SumDuration(list, entries.InWeek(week9), entries.ForUser(1)))
	assert.Equal(t, int64(4200), entries.SumDuration(list, entries.ForUser(1)))
	assert.Zero(t, entries.SumDuration(list, entries.ForUser(3)))
}
