package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "billr",
	Short: "billr – weekly billable hours within project budgets",
	Long: `billr reconciles time-tracking entries against project budgets and
writes the weekly billable hours report to a spreadsheet.
Settings live in ~/.billr/config.json; secrets come from the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main. Ctrl-C cancels the running
// command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.billr/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(usersCmd)
}
