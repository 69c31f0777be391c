package model

// Project is a billing unit with a time budget.
type Project struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	BudgetHours float64 `json:"budget_hours"`
	Active      bool    `json:"active"`
	StatusID    int64   `json:"status_id"`
}

// ReconciliationResult is the per-project outcome of a billable-hours run.
type ReconciliationResult struct {
	ProjectID       int64   `json:"project_id"`
	BudgetHours     float64 `json:"budget_hours"`
	CumulativeHours float64 `json:"cumulative_hours"`
	WeekHours       float64 `json:"week_hours"`
	PriorHours      float64 `json:"prior_hours"`
	RemainingBudget float64 `json:"remaining_budget"`
	BillableHours   float64 `json:"billable_hours"`
	Skipped         bool    `json:"skipped,omitempty"`
	SkipReason      string  `json:"skip_reason,omitempty"`
}
