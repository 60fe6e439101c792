package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/output"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and trim memory",
}

var memoryInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show physical memory usage",
	Args:  cobra.NoArgs,
	RunE:  runMemoryInfo,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Purge the standby list",
	Long: `Ask Windows to drop cached pages from the standby list. Nothing is
recorded, so there is nothing to restore.`,
	Args: cobra.NoArgs,
	RunE: runMemoryClear,
}

func init() {
	memoryCmd.AddCommand(memoryInfoCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	rootCmd.AddCommand(memoryCmd)
}

func runMemoryInfo(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	info, err := newSystem().Memory.Memory(ctx)
	if err != nil {
		return fmt.Errorf("failed to read memory statistics: %w", err)
	}
	return render(&output.View{Title: "Memory", Memory: &info})
}

func runMemoryClear(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	summary, _ := engine.Describe(engine.OpClearStandby)
	return applyOne(ctx, summary, engine.OpClearStandby, "")
}
