package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/billr/internal/report"
	"github.com/Tiliavir/billr/internal/timecalc"
)

var (
	reportWeek   weekFlags
	reportDryRun bool
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Assemble the weekly report and write it to the spreadsheet",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportWeek.register(reportCmd)
	reportCmd.Flags().BoolVar(&reportDryRun, "dry-run", false, "Compute the report without writing the sheet or posting to chat")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "Output format: text, json")
}

func runReport(cmd *cobra.Command, args []string) error {
	week, err := reportWeek.resolve(time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.close()

	asm, err := a.assembler(ctx, reportDryRun)
	if err != nil {
		return err
	}
	rep, err := asm.Run(ctx, week)
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), rep, reportFormat, reportDryRun)
}

func printReport(w io.Writer, r report.Report, format string, dryRun bool) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	dryTag := ""
	if dryRun {
		dryTag = " [dry-run]"
	}
	fmt.Fprintf(w, "Week %s (%s)%s\n", r.Week, timecalc.SheetWeekLabel(r.Week), dryTag)
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintf(w, "%-24s%s\n", "Daily board", timecalc.FormatDuration(r.DailyBoard.Seconds))
	fmt.Fprintf(w, "%-24s%s\n", "Done board", timecalc.FormatDuration(r.DoneBoard.Seconds))
	fmt.Fprintf(w, "%-24s%s\n", "Matched", timecalc.FormatHours(r.MatchedHours()))
	fmt.Fprintf(w, "%-24s%s\n", "Board billable", timecalc.FormatHours(r.BoardBillableHours))
	fmt.Fprintf(w, "%-24s%d\n", "Moved to done", r.TasksMovedToDone)
	fmt.Fprintf(w, "%-24s%d / %d / %d\n", "Cards new/prev/older",
		r.Cards.NewTasks, r.Cards.CreatedPrevWeek, r.Cards.CreatedEarlier)
	fmt.Fprintf(w, "%-24s%s\n", "Voucher billable", timecalc.FormatHours(r.VoucherBillableHours))
	fmt.Fprintf(w, "%-24s%s\n", "All billable", timecalc.FormatHours(r.AllBillableHours))
	fmt.Fprintf(w, "%-24s%s\n", "Per person", timecalc.FormatHours(r.PerPersonHours))
	if !dryRun {
		fmt.Fprintf(w, "%-24sdaily %d, overall %d\n", "Rows written", r.DailyRow, r.OverallRow)
	}
	return nil
}
