package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/timecalc"
)

// weekFlags selects the reported ISO week. Without flags it is the week
// before the current one.
type weekFlags struct {
	week int
	year int
}

func (f *weekFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.week, "week", 0, "ISO week number (default: last week)")
	cmd.Flags().IntVar(&f.year, "year", 0, "ISO week-numbering year (default: current)")
}

func (f weekFlags) resolve(now time.Time) (model.WeekWindow, error) {
	if f.week == 0 {
		if f.year != 0 {
			return model.WeekWindow{}, fmt.Errorf("--year needs --week")
		}
		return timecalc.PrevWeek(timecalc.WeekOf(now)), nil
	}
	year := f.year
	if year == 0 {
		year = timecalc.WeekOf(now).Year
	}
	if last := timecalc.WeeksInYear(year); f.week < 1 || f.week > last {
		return model.WeekWindow{}, fmt.Errorf("week %d out of range 1-%d for %d", f.week, last, year)
	}
	return model.WeekWindow{Year: year, Week: f.week}, nil
}

// parseIDs parses project ids given as arguments or comma lists.
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid project id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var weekNumber int

var weekCmd = &cobra.Command{
	Use:   "week [YYYY-MM-DD]",
	Short: "Show the ISO week of a day (default today)",
	Long: `Shows the ISO week of a day. With --number, shows the Jan-1 anchored
date block of that week number in the current calendar year instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWeek,
}

func init() {
	weekCmd.Flags().IntVar(&weekNumber, "number", 0, "Week number whose Jan-1 block of the current year to show")
}

func runWeek(cmd *cobra.Command, args []string) error {
	if weekNumber != 0 {
		if len(args) > 0 {
			return fmt.Errorf("--number takes no day argument")
		}
		if weekNumber < 1 || weekNumber > 53 {
			return fmt.Errorf("week number %d out of range 1-53", weekNumber)
		}
		printWeekNumber(cmd.OutOrStdout(), weekNumber)
		return nil
	}
	day := time.Now()
	if len(args) == 1 {
		d, err := timecalc.ParseDay(args[0])
		if err != nil {
			return err
		}
		day = d
	}
	printWeek(cmd.OutOrStdout(), day)
	return nil
}

func printWeek(w io.Writer, day time.Time) {
	week := timecalc.WeekOf(day)
	start, end := timecalc.WeekRange(week)
	blockStart, blockEnd := timecalc.DateRange(week.Year, week.Week)
	prev := timecalc.PrevWeek(week)

	fmt.Fprintf(w, "%-16s%s\n", "Day", day.Format("2006-01-02"))
	fmt.Fprintf(w, "%-16s%s\n", "ISO week", week)
	fmt.Fprintf(w, "%-16s%s\n", "Sheet label", timecalc.SheetWeekLabel(week))
	fmt.Fprintf(w, "%-16s%s – %s\n", "Monday–Sunday", start, end)
	fmt.Fprintf(w, "%-16s%s – %s\n", "Jan-1 block", blockStart, blockEnd)
	fmt.Fprintf(w, "%-16s%s\n", "Previous week", prev)
}

func printWeekNumber(w io.Writer, n int) {
	start, end := timecalc.DateRangeOf(n)
	fmt.Fprintf(w, "%-16s%d\n", "Week", n)
	fmt.Fprintf(w, "%-16s%s – %s\n", "Jan-1 block", start, end)
}
