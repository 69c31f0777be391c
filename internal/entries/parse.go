// Package entries validates raw time entries and sums their durations.
package entries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tiliavir/billr/internal/model"
)

// Rejection explains why a raw entry was left out of a batch.
type Rejection struct {
	Index  int
	Reason string
}

func (r Rejection) String() string {
	return fmt.Sprintf("entry #%d: %s", r.Index, r.Reason)
}

// wireEntry mirrors the upstream JSON; timestamps stay strings until checked.
type wireEntry struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"project_id"`
	UserID      int64   `json:"user_id"`
	TaskID      int64   `json:"task_id"`
	Duration    *int64  `json:"duration"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Description string  `json:"description"`
}

var errNotObject = errors.New("not a JSON object")

// Parse validates a fetched batch once. Well-formed entries are returned in
// input order; everything else is reported as a Rejection.
func Parse(raw []json.RawMessage) ([]model.TimeEntry, []Rejection) {
	entries := make([]model.TimeEntry, 0, len(raw))
	var rejected []Rejection
	for i, msg := range raw {
		e, err := parseOne(msg)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		entries = append(entries, e)
	}
	return entries, rejected
}

func parseOne(msg json.RawMessage) (model.TimeEntry, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.TimeEntry{}, errNotObject
	}
	var w wireEntry
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return model.TimeEntry{}, fmt.Errorf("decoding entry: %w", err)
	}
	if w.Duration == nil {
		return model.TimeEntry{}, errors.New("missing duration")
	}
	if *w.Duration < 0 {
		return model.TimeEntry{}, fmt.Errorf("negative duration %d", *w.Duration)
	}

	e := model.TimeEntry{
		ID:              w.ID,
		ProjectID:       w.ProjectID,
		UserID:          w.UserID,
		TaskID:          w.TaskID,
		DurationSeconds: *w.Duration,
		Description:     w.Description,
	}
	var err error
	if e.Date, err = parseTime(w.Date, "2006-01-02"); err != nil {
		return model.TimeEntry{}, fmt.Errorf("date: %w", err)
	}
	if e.Start, err = parseTime(w.StartTime, time.RFC3339); err != nil {
		return model.TimeEntry{}, fmt.Errorf("start_time: %w", err)
	}
	if e.End, err = parseTime(w.EndTime, time.RFC3339); err != nil {
		return model.TimeEntry{}, fmt.Errorf("end_time: %w", err)
	}
	return e, nil
}

// parseTime accepts a missing or empty value as "not set".
func parseTime(s *string, layout string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(layout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
