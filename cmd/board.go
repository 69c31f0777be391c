package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/billr/internal/timecalc"
)

var boardWeek weekFlags

var boardCmd = &cobra.Command{
	Use:   "board <board-id>",
	Short: "Show time logged against a board's cards in a week",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoard,
}

func init() {
	boardWeek.register(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	week, err := boardWeek.resolve(time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.close()

	asm, err := a.assembler(ctx, true)
	if err != nil {
		return err
	}
	bt, err := asm.BoardTime(ctx, args[0], week)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Board %s, week %s\n", bt.BoardID, week)
	fmt.Fprintf(w, "%-12s%d\n", "Entries", bt.Entries)
	fmt.Fprintf(w, "%-12s%s (%s)\n", "Time", timecalc.FormatDuration(bt.Seconds), timecalc.FormatHours(bt.Hours()))
	fmt.Fprintf(w, "%-12s%v\n", "Projects", bt.ProjectIDs)
	return nil
}
