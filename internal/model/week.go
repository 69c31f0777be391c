package model

import (
	"fmt"
	"time"
)

// WeekWindow identifies an ISO week. The year is the ISO week-numbering year,
// which differs from the calendar year for a few days around New Year.
type WeekWindow struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// String returns a label like "2026-W09".
func (w WeekWindow) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Week)
}

// Card is a card on the card-tracking board.
type Card struct {
	ID        string `json:"id"`
	ShortLink string `json:"shortLink"`
	Name      string `json:"name"`
}

// Action is a card-tracking event on a list, e.g. a card moved into it.
type Action struct {
	ID            string
	Type          string
	Date          time.Time
	CardShortLink string
}
