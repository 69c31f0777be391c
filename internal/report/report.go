// Package report assembles the weekly spreadsheet report: board time, card
// flow and billable hours for three project sets.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/metrics"
	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/pacer"
	"github.com/Tiliavir/billr/internal/reconcile"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/sheets"
	"github.com/Tiliavir/billr/internal/timecalc"
)

// DefaultNewTasksList names the list new cards arrive in.
const DefaultNewTasksList = "New Tasks"

// EntrySource loads time entries logged in a day range.
type EntrySource interface {
	EntriesBetween(ctx context.Context, start, end string) ([]json.RawMessage, error)
}

// CardSource reads the card-tracking boards.
type CardSource interface {
	BoardCards(ctx context.Context, boardID string) ([]model.Card, error)
	ListActions(ctx context.Context, listID string) ([]model.Action, error)
	ListIDByName(ctx context.Context, boardID, name string) (string, error)
}

// ProjectSource lists cached projects and drops the cache after a run.
type ProjectSource interface {
	Projects(ctx context.Context) ([]model.Project, error)
	Invalidate(ctx context.Context) error
}

// Reconciler computes billable hours for a project set.
type Reconciler interface {
	Reconcile(ctx context.Context, week model.WeekWindow, projectIDs, excluded []int64) (reconcile.Summary, error)
}

// Notifier posts the run summary to chat.
type Notifier interface {
	Post(ctx context.Context, text string) error
}

// Options are the per-deployment report settings.
type Options struct {
	DailyBoardID     string
	DoneBoardID      string
	DoneListID       string
	NewTasksList     string
	OverallSheet     string
	DailySheet       string
	ExcludedProjects []int64
	VoucherStatusIDs []int64
	Headcount        int
	// DryRun computes the report without writing the sheet or posting.
	DryRun bool
}

// Assembler runs the weekly report. Sheets and Notifier may be nil; a nil
// Sheets requires DryRun.
type Assembler struct {
	Entries    EntrySource
	Cards      CardSource
	Projects   ProjectSource
	Reconciler Reconciler
	Sheets     sheets.Writer
	Notifier   Notifier
	Policy     retry.Policy
	Pacer      pacer.Pacer
	Marker     entries.Marker
	Metrics    *metrics.Metrics
	Log        *zap.Logger
	Options    Options
}

// Report holds every figure written for one week.
type Report struct {
	Week                 model.WeekWindow `json:"week"`
	DailyBoard           BoardTime        `json:"daily_board"`
	DoneBoard            BoardTime        `json:"done_board"`
	MatchedSeconds       int64            `json:"matched_seconds"`
	BoardBillableHours   float64          `json:"board_billable_hours"`
	TasksMovedToDone     int              `json:"tasks_moved_to_done"`
	Cards                CardCounts       `json:"cards"`
	VoucherBillableHours float64          `json:"voucher_billable_hours"`
	AllBillableHours     float64          `json:"all_billable_hours"`
	PerPersonHours       float64          `json:"per_person_hours"`
	DailyRow             int              `json:"daily_row"`
	OverallRow           int              `json:"overall_row"`
}

// MatchedHours is the board time of both boards in hours.
func (r Report) MatchedHours() float64 { return timecalc.SecondsToHours(r.MatchedSeconds) }

// Summary is the chat message for the report.
func (r Report) Summary() string {
	return fmt.Sprintf("Week %d, %.2f hours matched. Billable: %.2f board, %.2f vouchers, %.2f total (%.2f per person).",
		r.Week.Week, r.MatchedHours(), r.BoardBillableHours, r.VoucherBillableHours, r.AllBillableHours, r.PerPersonHours)
}

// sheet columns
const (
	colLabel         = "A"
	colPerPerson     = "B"
	colAllBillable   = "C"
	colCardCounts    = "C"
	colTasksDone     = "F"
	colBoardBillable = "G"
	colVoucher       = "H"
)

// Run computes the report for week and, unless DryRun, writes it to the next
// free row of the daily and overall sheets. Any failure aborts the run; cells
// written before it stay written.
func (a *Assembler) Run(ctx context.Context, week model.WeekWindow) (Report, error) {
	opts := a.Options
	log := a.logger().With(zap.Stringer("week", week), zap.Bool("dry_run", opts.DryRun))
	rep := Report{Week: week}

	if !opts.DryRun && a.Sheets == nil {
		return rep, errors.New("no spreadsheet configured; use a dry run")
	}

	var err error
	if rep.DailyBoard, err = a.BoardTime(ctx, opts.DailyBoardID, week); err != nil {
		return rep, fmt.Errorf("daily board time: %w", err)
	}
	if err := a.wait(ctx); err != nil {
		return rep, err
	}
	if rep.DoneBoard, err = a.BoardTime(ctx, opts.DoneBoardID, week); err != nil {
		return rep, fmt.Errorf("done board time: %w", err)
	}
	rep.MatchedSeconds = rep.DailyBoard.Seconds + rep.DoneBoard.Seconds
	log.Info("board time matched",
		zap.Int64("seconds", rep.MatchedSeconds),
		zap.Int64s("daily_projects", rep.DailyBoard.ProjectIDs),
		zap.Int64s("done_projects", rep.DoneBoard.ProjectIDs),
	)

	var daily, overall *sheets.Row
	if !opts.DryRun {
		if overall, err = sheets.NextRow(ctx, a.Sheets, opts.OverallSheet); err != nil {
			return rep, err
		}
		if daily, err = sheets.NextRow(ctx, a.Sheets, opts.DailySheet); err != nil {
			return rep, err
		}
		rep.OverallRow, rep.DailyRow = overall.Number(), daily.Number()
	}
	label := timecalc.SheetWeekLabel(week)
	if err := a.set(ctx, overall, colLabel, label); err != nil {
		return rep, err
	}
	if err := a.set(ctx, daily, colLabel, label, fmt.Sprintf("%g", rep.MatchedHours())); err != nil {
		return rep, err
	}

	boardIDs := unionIDs(rep.DailyBoard.ProjectIDs, rep.DoneBoard.ProjectIDs)
	board, err := a.Reconciler.Reconcile(ctx, week, boardIDs, opts.ExcludedProjects)
	if err != nil {
		return rep, fmt.Errorf("board billable hours: %w", err)
	}
	rep.BoardBillableHours = board.TotalBillableHours
	a.gauge("board", rep.BoardBillableHours)
	if err := a.set(ctx, daily, colBoardBillable, rep.BoardBillableHours); err != nil {
		return rep, err
	}

	if rep.TasksMovedToDone, err = a.tasksMovedToDone(ctx, week); err != nil {
		return rep, err
	}
	if err := a.set(ctx, daily, colTasksDone, rep.TasksMovedToDone); err != nil {
		return rep, err
	}

	if rep.Cards, err = a.cardCounts(ctx, week); err != nil {
		return rep, err
	}
	if err := a.set(ctx, daily, colCardCounts, rep.Cards.Values()...); err != nil {
		return rep, err
	}

	projects, err := a.Projects.Projects(ctx)
	if err != nil {
		return rep, fmt.Errorf("listing projects: %w", err)
	}
	var voucherIDs, activeIDs []int64
	for _, p := range projects {
		if slices.Contains(opts.VoucherStatusIDs, p.StatusID) {
			voucherIDs = append(voucherIDs, p.ID)
		}
		if p.Active {
			activeIDs = append(activeIDs, p.ID)
		}
	}

	vouchers, err := a.Reconciler.Reconcile(ctx, week, voucherIDs, nil)
	if err != nil {
		return rep, fmt.Errorf("voucher billable hours: %w", err)
	}
	rep.VoucherBillableHours = vouchers.TotalBillableHours
	a.gauge("voucher", rep.VoucherBillableHours)
	if err := a.set(ctx, daily, colVoucher, rep.VoucherBillableHours); err != nil {
		return rep, err
	}

	all, err := a.Reconciler.Reconcile(ctx, week, activeIDs, nil)
	if err != nil {
		return rep, fmt.Errorf("total billable hours: %w", err)
	}
	rep.AllBillableHours = all.TotalBillableHours
	a.gauge("all", rep.AllBillableHours)
	if opts.Headcount > 0 {
		rep.PerPersonHours = rep.AllBillableHours / float64(opts.Headcount)
	}
	if err := a.set(ctx, overall, colAllBillable, rep.AllBillableHours); err != nil {
		return rep, err
	}
	if err := a.set(ctx, overall, colPerPerson, rep.PerPersonHours); err != nil {
		return rep, err
	}

	if err := a.Projects.Invalidate(ctx); err != nil {
		log.Warn("project cache not cleared", zap.Error(err))
	}

	if a.Notifier != nil && !opts.DryRun {
		if err := a.Notifier.Post(ctx, rep.Summary()); err != nil {
			log.Warn("summary not posted", zap.Error(err))
		}
	}

	log.Info("report assembled",
		zap.Float64("board_billable_hours", rep.BoardBillableHours),
		zap.Float64("voucher_billable_hours", rep.VoucherBillableHours),
		zap.Float64("all_billable_hours", rep.AllBillableHours),
	)
	return rep, nil
}

func (a *Assembler) tasksMovedToDone(ctx context.Context, week model.WeekWindow) (int, error) {
	actions, err := retry.Do(ctx, a.Policy, func(ctx context.Context) ([]model.Action, error) {
		return a.Cards.ListActions(ctx, a.Options.DoneListID)
	})
	if err != nil {
		return 0, fmt.Errorf("done list actions: %w", err)
	}
	return len(inWeek(actions, week)), nil
}

func (a *Assembler) cardCounts(ctx context.Context, week model.WeekWindow) (CardCounts, error) {
	var counts CardCounts
	boardID := a.Options.DailyBoardID
	cards, err := retry.Do(ctx, a.Policy, func(ctx context.Context) ([]model.Card, error) {
		return a.Cards.BoardCards(ctx, boardID)
	})
	if err != nil {
		return counts, fmt.Errorf("daily board cards: %w", err)
	}
	counts.CreatedPrevWeek, counts.CreatedEarlier = countCreated(cards, week, a.logger())

	name := a.Options.NewTasksList
	if name == "" {
		name = DefaultNewTasksList
	}
	listID, err := retry.Do(ctx, a.Policy, func(ctx context.Context) (string, error) {
		return a.Cards.ListIDByName(ctx, boardID, name)
	})
	if err != nil {
		return counts, fmt.Errorf("new tasks list: %w", err)
	}
	actions, err := retry.Do(ctx, a.Policy, func(ctx context.Context) ([]model.Action, error) {
		return a.Cards.ListActions(ctx, listID)
	})
	if err != nil {
		return counts, fmt.Errorf("new tasks actions: %w", err)
	}
	counts.NewTasks = uniqueCards(inWeek(actions, week))
	return counts, nil
}

// set writes to row unless the run is dry.
func (a *Assembler) set(ctx context.Context, row *sheets.Row, column string, values ...any) error {
	if row == nil {
		return nil
	}
	if err := row.Set(ctx, column, values...); err != nil {
		return fmt.Errorf("writing %s%d on %q: %w", column, row.Number(), row.Sheet(), err)
	}
	return nil
}

func (a *Assembler) wait(ctx context.Context) error {
	if a.Pacer == nil {
		return nil
	}
	return a.Pacer.Wait(ctx)
}

func (a *Assembler) gauge(set string, hours float64) {
	if a.Metrics != nil {
		a.Metrics.BillableHours.WithLabelValues(set).Set(hours)
	}
}

func (a *Assembler) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// unionIDs concatenates id lists keeping the first occurrence of each id.
func unionIDs(lists ...[]int64) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, l := range lists {
		for _, id := range l {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}
