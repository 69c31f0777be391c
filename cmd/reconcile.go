package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/billr/internal/reconcile"
	"github.com/Tiliavir/billr/internal/timecalc"
)

var (
	reconcileWeek    weekFlags
	reconcileExclude []int64
	reconcileAll     bool
	reconcileFormat  string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [project-id...]",
	Short: "Compute billable hours of projects for a week",
	Long: `Computes, per project, the invoiceable hours logged in the week that
still fit in the project's remaining budget, and their total.`,
	RunE: runReconcile,
}

func init() {
	reconcileWeek.register(reconcileCmd)
	reconcileCmd.Flags().Int64SliceVar(&reconcileExclude, "exclude", nil, "Project ids to leave out")
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "Reconcile every active project")
	reconcileCmd.Flags().StringVar(&reconcileFormat, "format", "text", "Output format: text, json")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	week, err := reconcileWeek.resolve(time.Now())
	if err != nil {
		return err
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(ids) == 0 && !reconcileAll {
		return errors.New("name project ids or use --all")
	}

	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.close()

	client, err := a.paymo()
	if err != nil {
		return err
	}
	cache := a.projectCache(client)

	if reconcileAll {
		projects, err := cache.Projects(ctx)
		if err != nil {
			return err
		}
		for _, p := range projects {
			if p.Active {
				ids = append(ids, p.ID)
			}
		}
	}

	summary, err := a.reconciler(cache, client).Reconcile(ctx, week, ids, reconcileExclude)
	if err != nil {
		return err
	}
	a.metrics.BillableHours.WithLabelValues("adhoc").Set(summary.TotalBillableHours)
	return printSummary(cmd.OutOrStdout(), summary, reconcileFormat)
}

func printSummary(w io.Writer, s reconcile.Summary, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Week %s\n", s.Week)
	fmt.Fprintln(w, "----------------------------------------------------------------")
	fmt.Fprintf(w, "%-10s%10s%10s%10s%12s%12s\n", "project", "budget", "total", "week", "remaining", "billable")
	for _, r := range s.Results {
		if r.Skipped {
			fmt.Fprintf(w, "%-10d%s\n", r.ProjectID, "  skipped: "+r.SkipReason)
			continue
		}
		fmt.Fprintf(w, "%-10d%10.2f%10.2f%10.2f%12.2f%12.2f\n",
			r.ProjectID, r.BudgetHours, r.CumulativeHours, r.WeekHours, r.RemainingBudget, r.BillableHours)
	}
	fmt.Fprintln(w, "----------------------------------------------------------------")
	fmt.Fprintf(w, "%-10s%54s\n", "Total", timecalc.FormatHours(s.TotalBillableHours))
	return nil
}
