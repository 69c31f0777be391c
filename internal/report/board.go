package report

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/timecalc"
	"github.com/Tiliavir/billr/internal/trello"
)

// BoardTime is the linked time logged against cards of one board in a week.
type BoardTime struct {
	BoardID    string  `json:"board_id"`
	Seconds    int64   `json:"seconds"`
	ProjectIDs []int64 `json:"project_ids"`
	Entries    int     `json:"entries"`
}

// Hours returns Seconds in hours.
func (b BoardTime) Hours() float64 { return timecalc.SecondsToHours(b.Seconds) }

// BoardTime sums the entries of week whose description links a card on
// boardID. ProjectIDs lists each contributing project once, in first-seen
// order.
func (a *Assembler) BoardTime(ctx context.Context, boardID string, week model.WeekWindow) (BoardTime, error) {
	start, end := timecalc.WeekRange(week)
	raw, err := retry.Do(ctx, a.Policy, func(ctx context.Context) ([]json.RawMessage, error) {
		return a.Entries.EntriesBetween(ctx, start, end)
	})
	if err != nil {
		return BoardTime{}, err
	}
	cards, err := retry.Do(ctx, a.Policy, func(ctx context.Context) ([]model.Card, error) {
		return a.Cards.BoardCards(ctx, boardID)
	})
	if err != nil {
		return BoardTime{}, err
	}

	list, rejected := entries.Parse(raw)
	if a.Metrics != nil {
		a.Metrics.EntriesRejected.Add(float64(len(rejected)))
	}
	onBoard := make(map[string]struct{}, len(cards))
	for _, c := range cards {
		onBoard[c.ShortLink] = struct{}{}
	}
	linked := func(e model.TimeEntry) bool {
		link, ok := a.Marker.ShortLink(e.Description)
		if !ok {
			return false
		}
		_, ok = onBoard[link]
		return ok
	}

	bt := BoardTime{BoardID: boardID}
	seen := make(map[int64]struct{})
	match := entries.And(entries.InWeek(week), linked)
	for _, e := range list {
		if !match(e) {
			continue
		}
		bt.Seconds += e.DurationSeconds
		bt.Entries++
		if _, dup := seen[e.ProjectID]; !dup {
			seen[e.ProjectID] = struct{}{}
			bt.ProjectIDs = append(bt.ProjectIDs, e.ProjectID)
		}
	}
	a.logger().Debug("board time",
		zap.String("board_id", boardID),
		zap.Stringer("week", week),
		zap.Int("entries", bt.Entries),
		zap.Int64("seconds", bt.Seconds),
	)
	return bt, nil
}

// CardCounts describes card flow on the daily board.
type CardCounts struct {
	NewTasks        int `json:"new_tasks"`
	CreatedPrevWeek int `json:"created_prev_week"`
	CreatedEarlier  int `json:"created_earlier"`
}

// Values returns the counts in spreadsheet column order.
func (c CardCounts) Values() []any {
	return []any{c.NewTasks, c.CreatedPrevWeek, c.CreatedEarlier}
}

// countCreated buckets open cards by creation time relative to week. Cards
// created during week or later are not counted.
func countCreated(cards []model.Card, week model.WeekWindow, log *zap.Logger) (prev, earlier int) {
	prevStart := timecalc.MondayOf(timecalc.PrevWeek(week))
	weekStart := timecalc.MondayOf(week)
	for _, c := range cards {
		created, err := trello.CardCreated(c.ID)
		if err != nil {
			log.Debug("card without creation time", zap.String("card_id", c.ID), zap.Error(err))
			continue
		}
		switch {
		case created.Before(prevStart):
			earlier++
		case created.Before(weekStart):
			prev++
		}
	}
	return prev, earlier
}

// inWeek filters actions dated in week.
func inWeek(actions []model.Action, week model.WeekWindow) []model.Action {
	var out []model.Action
	for _, a := range actions {
		if timecalc.WeekOf(a.Date) == week {
			out = append(out, a)
		}
	}
	return out
}

// uniqueCards counts the distinct cards referenced by actions.
func uniqueCards(actions []model.Action) int {
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if a.CardShortLink != "" {
			seen[a.CardShortLink] = struct{}{}
		}
	}
	return len(seen)
}
