package model

import "time"

// TimeEntry is one logged work interval as reported by the time-tracking API.
// Entries are read-only: they are fetched fresh for every query.
type TimeEntry struct {
	ID              int64      `json:"id"`
	ProjectID       int64      `json:"project_id"`
	UserID          int64      `json:"user_id"`
	TaskID          int64      `json:"task_id"`
	DurationSeconds int64      `json:"duration"`
	Date            *time.Time `json:"date,omitempty"`
	Start           *time.Time `json:"start_time,omitempty"`
	End             *time.Time `json:"end_time,omitempty"`
	Description     string     `json:"description"`
}

// Timestamp returns the instant used to place the entry in a week: the start
// time, then the end time, then the bare date. ok is false when the entry
// carries none of them.
func (e TimeEntry) Timestamp() (t time.Time, ok bool) {
	switch {
	case e.Start != nil:
		return *e.Start, true
	case e.End != nil:
		return *e.End, true
	case e.Date != nil:
		return *e.Date, true
	}
	return time.Time{}, false
}

// User is a member of the time-tracking workspace.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
