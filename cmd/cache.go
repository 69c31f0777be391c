package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/billr/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the cached project list",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cached projects, fetching them if the cache is empty",
	Args:  cobra.NoArgs,
	RunE:  runCacheShow,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the cached project list",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.close()

	client, err := a.paymo()
	if err != nil {
		return err
	}
	projects, err := a.projectCache(client).Projects(ctx)
	if err != nil {
		return err
	}
	printProjects(cmd.OutOrStdout(), projects)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.close()

	// Clearing needs no upstream access.
	if err := a.projectCache(nil).Invalidate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Project cache cleared.")
	return nil
}

func printProjects(w io.Writer, projects []model.Project) {
	fmt.Fprintf(w, "%-10s%-30s%10s%8s%8s\n", "id", "name", "budget", "active", "status")
	for _, p := range projects {
		fmt.Fprintf(w, "%-10d%-30s%10.2f%8t%8d\n", p.ID, truncate(p.Name, 28), p.BudgetHours, p.Active, p.StatusID)
	}
	fmt.Fprintf(w, "%d project(s)\n", len(projects))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
