package report

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/timecalc"
)

// UserSource lists the members of the time-tracking workspace.
type UserSource interface {
	Users(ctx context.Context) ([]model.User, error)
}

// UserTime is the time one member logged in a week, linked or not.
type UserTime struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// Hours returns Seconds in hours.
func (u UserTime) Hours() float64 { return timecalc.SecondsToHours(u.Seconds) }

// UserTimes sums, for every active member, the entries logged within week.
// Members are returned in upstream order; those without entries get zero.
func UserTimes(ctx context.Context, users UserSource, src EntrySource, policy retry.Policy, week model.WeekWindow, log *zap.Logger) ([]UserTime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	members, err := retry.Do(ctx, policy, users.Users)
	if err != nil {
		return nil, err
	}
	start, end := timecalc.WeekRange(week)
	raw, err := retry.Do(ctx, policy, func(ctx context.Context) ([]json.RawMessage, error) {
		return src.EntriesBetween(ctx, start, end)
	})
	if err != nil {
		return nil, err
	}
	list, rejected := entries.Parse(raw)
	for _, rej := range rejected {
		log.Debug("entry rejected", zap.Stringer("rejection", rej))
	}

	var out []UserTime
	for _, u := range members {
		if !u.Active {
			continue
		}
		out = append(out, UserTime{
			UserID:  u.ID,
			Name:    u.Name,
			Seconds: entries.SumDuration(list, entries.InWeek(week), entries.ForUser(u.ID)),
		})
	}
	log.Info("user time summed", zap.Stringer("week", week), zap.Int("users", len(out)))
	return out, nil
}
