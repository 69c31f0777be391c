// Package reconcile computes weekly billable hours per project, clamped
// against what is left of each project's budget.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/metrics"
	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/pacer"
	"github.com/Tiliavir/billr/internal/projectcache"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/timecalc"
)

// Budgets resolves a project's budget in hours.
type Budgets interface {
	BudgetHours(ctx context.Context, projectID int64) (float64, error)
}

// EntryFetcher loads every time entry recorded on a project.
type EntryFetcher interface {
	ProjectEntries(ctx context.Context, projectID int64) ([]json.RawMessage, error)
}

// Error aborts a run; no partial total accompanies it.
type Error struct {
	ProjectID int64
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconciling project %d: %v", e.ProjectID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Summary is the outcome of one Reconcile call.
type Summary struct {
	Week               model.WeekWindow             `json:"week"`
	TotalBillableHours float64                      `json:"total_billable_hours"`
	Results            []model.ReconciliationResult `json:"results"`
}

// Reconciler computes billable hours for a set of projects.
type Reconciler struct {
	Budgets Budgets
	Entries EntryFetcher
	Policy  retry.Policy
	Pacer   pacer.Pacer
	Marker  entries.Marker
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// Contribution is the billable share of weekHours: what still fits in the
// budget after the hours billed before the week, never negative and never
// more than weekHours.
func Contribution(budgetHours, cumulativeHours, weekHours float64) float64 {
	prior := cumulativeHours - weekHours
	remaining := budgetHours - prior
	if remaining <= 0 {
		return 0
	}
	return max(0, min(weekHours, remaining))
}

// Reconcile processes projectIDs minus excluded sequentially, in order, and
// returns the summed billable hours. A project missing from the budget source
// is skipped; any other failure aborts the run with an *Error.
func (r *Reconciler) Reconcile(ctx context.Context, week model.WeekWindow, projectIDs, excluded []int64) (Summary, error) {
	log := r.logger().With(zap.Stringer("week", week))
	skip := make(map[int64]struct{}, len(excluded)+len(projectIDs))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	sum := Summary{Week: week}
	for _, id := range projectIDs {
		if _, seen := skip[id]; seen {
			continue
		}
		skip[id] = struct{}{}

		res, err := r.project(ctx, week, id, log)
		if err != nil {
			r.count("failed")
			return Summary{}, &Error{ProjectID: id, Err: err}
		}
		if res.Skipped {
			r.count("skipped")
		} else {
			r.count("reconciled")
		}
		sum.TotalBillableHours += res.BillableHours
		sum.Results = append(sum.Results, res)
	}

	log.Info("reconciliation done",
		zap.Int("projects", len(sum.Results)),
		zap.Float64("billable_hours", sum.TotalBillableHours),
	)
	return sum, nil
}

func (r *Reconciler) project(ctx context.Context, week model.WeekWindow, id int64, log *zap.Logger) (model.ReconciliationResult, error) {
	log = log.With(zap.Int64("project_id", id))
	res := model.ReconciliationResult{ProjectID: id}

	budget, err := r.Budgets.BudgetHours(ctx, id)
	if errors.Is(err, projectcache.ErrProjectNotFound) {
		log.Warn("project unknown, skipping", zap.Error(err))
		res.Skipped = true
		res.SkipReason = err.Error()
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.BudgetHours = budget

	raw, err := retry.Do(ctx, r.Policy, func(ctx context.Context) ([]json.RawMessage, error) {
		return r.Entries.ProjectEntries(ctx, id)
	})
	if err != nil {
		return res, err
	}
	list, rejected := entries.Parse(raw)
	for _, rej := range rejected {
		log.Debug("entry rejected", zap.Stringer("rejection", rej))
	}
	if r.Metrics != nil {
		r.Metrics.EntriesRejected.Add(float64(len(rejected)))
	}

	res.CumulativeHours = timecalc.SecondsToHours(entries.CumulativeSeconds(list))
	res.WeekHours = timecalc.SecondsToHours(entries.WeekSeconds(list, week, r.Marker))
	res.PriorHours = res.CumulativeHours - res.WeekHours
	res.RemainingBudget = res.BudgetHours - res.PriorHours
	res.BillableHours = Contribution(res.BudgetHours, res.CumulativeHours, res.WeekHours)

	log.Debug("project reconciled",
		zap.Float64("budget_hours", res.BudgetHours),
		zap.Float64("cumulative_hours", res.CumulativeHours),
		zap.Float64("week_hours", res.WeekHours),
		zap.Float64("billable_hours", res.BillableHours),
	)

	if r.Pacer != nil {
		if err := r.Pacer.Wait(ctx); err != nil {
			return res, fmt.Errorf("waiting for rate limit: %w", err)
		}
	}
	return res, nil
}

func (r *Reconciler) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Reconciler) count(outcome string) {
	if r.Metrics != nil {
		r.Metrics.ProjectsReconciled.WithLabelValues(outcome).Inc()
	}
}
