package reconcile_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/metrics"
	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/pacer"
	"github.com/Tiliavir/billr/internal/projectcache"
	"github.com/Tiliavir/billr/internal/reconcile"
	"github.com/Tiliavir/billr/internal/retry"
)

var week9 = model.WeekWindow{Year: 2026, Week: 9}

type mockBudgets struct{ mock.Mock }

func (m *mockBudgets) BudgetHours(ctx context.Context, id int64) (float64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(float64), args.Error(1)
}

type mockEntries struct{ mock.Mock }

func (m *mockEntries) ProjectEntries(ctx context.Context, id int64) ([]json.RawMessage, error) {
	args := m.Called(ctx, id)
	list, _ := args.Get(0).([]json.RawMessage)
	return list, args.Error(1)
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

// history returns entries worth priorHours before week 9 and weekHours of
// linked work inside it.
func history(priorHours, weekHours float64) []json.RawMessage {
	return []json.RawMessage{
		json.RawMessage(fmt.Sprintf(`{"id":1,"duration":%d,"date":"2026-02-02","description":"old"}`, int64(priorHours*3600))),
		json.RawMessage(fmt.Sprintf(`{"id":2,"duration":%d,"date":"2026-02-24","description":"https://trello.com/c/AbC123"}`, int64(weekHours*3600))),
	}
}

func newReconciler(b *mockBudgets, e *mockEntries, p pacer.Pacer) *reconcile.Reconciler {
	return &reconcile.Reconciler{
		Budgets: b,
		Entries: e,
		Policy: retry.Policy{
			Attempts: 3,
			Sleep:    func(context.Context, time.Duration) error { return nil },
		},
		Pacer:  p,
		Marker: entries.DefaultMarker,
	}
}

func TestContribution(t *testing.T) {
	tests := []struct {
		name                     string
		budget, cumulative, week float64
		want                     float64
	}{
		{"scenario A: fits in remaining budget", 40, 35, 10, 10},
		{"scenario B: budget used up before the week", 40, 45, 5, 0},
		{"scenario C: zero budget", 0, 12, 4, 0},
		{"partially over budget", 40, 45, 10, 5},
		{"nothing this week", 40, 10, 0, 0},
		{"exactly exhausted", 40, 40, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, reconcile.Contribution(tt.budget, tt.cumulative, tt.week), 1e-9)
		})
	}
}

func TestContribution_Bounds(t *testing.T) {
	for budget := 0.0; budget <= 50; budget += 5 {
		for prior := 0.0; prior <= 60; prior += 7 {
			for week := 0.0; week <= 20; week += 3 {
				got := reconcile.Contribution(budget, prior+week, week)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, week)
			}
		}
	}
}

func TestReconcile_Scenarios(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, int64(10)).Return(40.0, nil)
	b.On("BudgetHours", mock.Anything, int64(20)).Return(40.0, nil)
	b.On("BudgetHours", mock.Anything, int64(30)).Return(0.0, nil)
	b.On("BudgetHours", mock.Anything, int64(99999)).
		Return(0.0, fmt.Errorf("project 99999: %w", projectcache.ErrProjectNotFound))

	e := &mockEntries{}
	e.On("ProjectEntries", mock.Anything, int64(10)).Return(history(25, 10), nil)
	e.On("ProjectEntries", mock.Anything, int64(20)).Return(history(40, 5), nil)
	e.On("ProjectEntries", mock.Anything, int64(30)).Return(history(8, 4), nil)

	p := &countingPacer{}
	m := metrics.New()
	r := newReconciler(b, e, p)
	r.Metrics = m

	sum, err := r.Reconcile(context.Background(), week9, []int64{10, 99999, 20, 30}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, sum.TotalBillableHours, 1e-9)
	require.Len(t, sum.Results, 4)

	a := sum.Results[0]
	assert.Equal(t, int64(10), a.ProjectID)
	assert.InDelta(t, 35.0, a.CumulativeHours, 1e-9)
	assert.InDelta(t, 25.0, a.PriorHours, 1e-9)
	assert.InDelta(t, 15.0, a.RemainingBudget, 1e-9)
	assert.InDelta(t, 10.0, a.BillableHours, 1e-9)

	assert.True(t, sum.Results[1].Skipped)
	assert.Zero(t, sum.Results[1].BillableHours)

	assert.InDelta(t, 0.0, sum.Results[2].RemainingBudget, 1e-9)
	assert.Zero(t, sum.Results[2].BillableHours)
	assert.Zero(t, sum.Results[3].BillableHours)

	e.AssertNotCalled(t, "ProjectEntries", mock.Anything, int64(99999))
	assert.Equal(t, 3, p.waits)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProjectsReconciled.WithLabelValues("reconciled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProjectsReconciled.WithLabelValues("skipped")))
}

func TestReconcile_Idempotent(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, mock.Anything).Return(40.0, nil)
	e := &mockEntries{}
	e.On("ProjectEntries", mock.Anything, mock.Anything).Return(history(30, 12), nil)
	r := newReconciler(b, e, pacer.None())

	first, err := r.Reconcile(context.Background(), week9, []int64{1, 2}, nil)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), week9, []int64{1, 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.InDelta(t, 20.0, first.TotalBillableHours, 1e-9)
}

func TestReconcile_ExcludesAndDeduplicates(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, mock.Anything).Return(100.0, nil)
	e := &mockEntries{}
	e.On("ProjectEntries", mock.Anything, mock.Anything).Return(history(0, 2), nil)
	r := newReconciler(b, e, pacer.None())

	sum, err := r.Reconcile(context.Background(), week9, []int64{1, 2, 1, 3, 2}, []int64{3})
	require.NoError(t, err)

	require.Len(t, sum.Results, 2)
	assert.Equal(t, int64(1), sum.Results[0].ProjectID)
	assert.Equal(t, int64(2), sum.Results[1].ProjectID)
	assert.InDelta(t, 4.0, sum.TotalBillableHours, 1e-9)
	e.AssertNumberOfCalls(t, "ProjectEntries", 2)
}

func TestReconcile_EntriesOutsideWeekOrWithoutLinkDoNotBill(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, int64(1)).Return(40.0, nil)
	e := &mockEntries{}
	e.On("ProjectEntries", mock.Anything, int64(1)).Return([]json.RawMessage{
		json.RawMessage(`{"duration":7200,"date":"2026-02-24","description":"no link"}`),
		json.RawMessage(`null`),
		json.RawMessage(`{"duration":-5,"date":"2026-02-24"}`),
	}, nil)
	m := metrics.New()
	r := newReconciler(b, e, pacer.None())
	r.Metrics = m

	sum, err := r.Reconcile(context.Background(), week9, []int64{1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sum.Results[0].CumulativeHours, 1e-9)
	assert.Zero(t, sum.TotalBillableHours)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesRejected))
}

func TestReconcile_FetchFailureAbortsRun(t *testing.T) {
	errDown := errors.New("502 bad gateway")
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, mock.Anything).Return(40.0, nil)
	e := &mockEntries{}
	e.On("ProjectEntries", mock.Anything, int64(1)).Return(history(0, 1), nil)
	e.On("ProjectEntries", mock.Anything, int64(2)).Return(nil, errDown)
	r := newReconciler(b, e, pacer.None())

	sum, err := r.Reconcile(context.Background(), week9, []int64{1, 2, 3}, nil)
	require.Error(t, err)
	assert.Zero(t, sum.TotalBillableHours)
	assert.Nil(t, sum.Results)

	var rerr *reconcile.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, int64(2), rerr.ProjectID)
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, errDown)

	e.AssertNumberOfCalls(t, "ProjectEntries", 4)
	e.AssertNotCalled(t, "ProjectEntries", mock.Anything, int64(3))
}

func TestReconcile_BudgetErrorOtherThanNotFoundIsFatal(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, int64(1)).Return(0.0, errors.New("fetching projects: timeout"))
	e := &mockEntries{}
	r := newReconciler(b, e, pacer.None())

	_, err := r.Reconcile(context.Background(), week9, []int64{1}, nil)
	var rerr *reconcile.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, int64(1), rerr.ProjectID)
	e.AssertNotCalled(t, "ProjectEntries", mock.Anything, mock.Anything)
}

func TestReconcile_CancelledContext(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, mock.Anything).Return(40.0, nil)
	e := &mockEntries{}
	r := newReconciler(b, e, pacer.None())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Reconcile(ctx, week9, []int64{1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	e.AssertNotCalled(t, "ProjectEntries", mock.Anything, mock.Anything)
}

type timedEntries struct{ calls []time.Time }

func (e *timedEntries) ProjectEntries(context.Context, int64) ([]json.RawMessage, error) {
	e.calls = append(e.calls, time.Now())
	return history(0, 1), nil
}

func TestReconcile_PacesEveryProjectFetch(t *testing.T) {
	b := &mockBudgets{}
	b.On("BudgetHours", mock.Anything, mock.Anything).Return(40.0, nil)
	e := &timedEntries{}
	const interval = 60 * time.Millisecond
	r := newReconciler(b, nil, pacer.NewInterval(interval))
	r.Entries = e

	_, err := r.Reconcile(context.Background(), week9, []int64{1, 2, 3}, nil)
	require.NoError(t, err)
	require.Len(t, e.calls, 3)
	for i := 1; i < len(e.calls); i++ {
		assert.GreaterOrEqual(t, e.calls[i].Sub(e.calls[i-1]), interval-10*time.Millisecond,
			"gap before fetch of project %d", i+1)
	}
}
