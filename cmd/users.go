package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/report"
	"github.com/Tiliavir/billr/internal/timecalc"
)

var (
	usersWeek   weekFlags
	usersFormat string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Show the time each active member logged in a week",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

func init() {
	usersWeek.register(usersCmd)
	usersCmd.Flags().StringVar(&usersFormat, "format", "text", "Output format: text, json")
}

func runUsers(cmd *cobra.Command, args []string) error {
	week, err := usersWeek.resolve(time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.close()

	client, err := a.paymo()
	if err != nil {
		return err
	}
	times, err := report.UserTimes(ctx, client, client, a.policy(), week, a.log)
	if err != nil {
		return err
	}
	return printUserTimes(cmd.OutOrStdout(), week, times, usersFormat)
}

func printUserTimes(w io.Writer, week model.WeekWindow, times []report.UserTime, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(times)
	}

	fmt.Fprintf(w, "Week %s\n", week)
	fmt.Fprintln(w, "----------------------------------------")
	var total int64
	for _, u := range times {
		fmt.Fprintf(w, "%-26s%14s\n", truncate(u.Name, 25), timecalc.FormatDuration(u.Seconds))
		total += u.Seconds
	}
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "%-26s%14s\n", "Total", timecalc.FormatDuration(total))
	return nil
}
