package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/output"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past runs",
	Long: `View the history of optimization runs and restores.

Every bulk run, single operation and restore is stored with the outcome of
each step, so earlier sessions can be inspected after the fact.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the steps of one run",
	Long:  `Display every step of a recorded run. A unique prefix of the ID is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old history entries",
	Long:  `Remove history entries older than history.retention_days.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.History, error) {
	h, err := history.New(cfg.HistoryDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return h, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}

	entries, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'gametune all' to apply every optimization.")
		return nil
	}

	if err := render(&output.View{Title: "History", History: entries}); err != nil {
		return err
	}
	printVerbose("showing %d entries from %s", len(entries), h.Dir())
	return nil
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}

	entry, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	report := types.Report{
		Steps:    entry.Steps,
		Started:  entry.Timestamp,
		Duration: entry.Summary.Duration,
	}
	title := fmt.Sprintf("%s %s (%s)", entry.Operation, entry.ID, entry.Timestamp.Format("2006-01-02 15:04:05"))

	// past failures are history, not a failure of this command
	return render(&output.View{Title: title, Report: &report})
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := h.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}
