package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/gametune/output"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Inspect recorded prior values",
}

var backupShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List every setting recorded before it was changed",
	Long: `List the prior value of every setting gametune has changed. A setting is
recorded once, before its first change, so the list always shows the state
'gametune restore' returns to.`,
	Args: cobra.NoArgs,
	RunE: runBackupShow,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Put every recorded setting back",
	Long: `Write every recorded prior value back, newest first. A setting that did not
exist before is deleted again. Entries that restore cleanly are dropped from
the backup; failures stay so a later restore can retry them.`,
	Args: cobra.NoArgs,
	RunE: runRestore,
}

func init() {
	backupCmd.AddCommand(backupShowCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runBackupShow(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return withBackend(ctx, func(b backend) error {
		records, err := b.Backup(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			printInfo("Nothing recorded. Settings are recorded the first time gametune changes them.")
			return nil
		}
		order, counts := recordsByCategory(records)
		for _, c := range order {
			printVerbose("%s: %d record(s)", c, counts[c])
		}
		return render(&output.View{Title: "Recorded prior values", Records: records})
	})
}

func runRestore(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return withBackend(ctx, func(b backend) error {
		report, err := b.Restore(ctx)
		if len(report.Steps) == 0 && err == nil {
			printInfo("Nothing to restore.")
			return nil
		}
		if rerr := renderReport("Restore", report); rerr != nil {
			return rerr
		}
		return err
	})
}

// recordsByCategory counts records per category, in first-seen order.
func recordsByCategory(records []types.TweakRecord) ([]types.Category, map[types.Category]int) {
	var order []types.Category
	counts := make(map[types.Category]int)
	for _, r := range records {
		if _, ok := counts[r.Category]; !ok {
			order = append(order, r.Category)
		}
		counts[r.Category]++
	}
	return order, counts
}
