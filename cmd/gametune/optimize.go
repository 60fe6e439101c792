package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/gametune/engine"
)

var runCmd = &cobra.Command{
	Use:   "run <operation>",
	Short: "Apply one optimization",
	Long: `Apply a single named optimization. Use 'gametune list' to see them all.

Operations that act on a network adapter (optimize-adapter, set-dns) use the
adapter carrying the default route unless --adapter names one.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeOperations,
	RunE:              runOperation,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available optimizations",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Apply every optimization",
	Long: `Apply every optimization in a fixed order. A failing step never stops the
ones after it; the report lists each step's outcome.`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

var (
	adapterName string
	provider    string
)

func init() {
	runCmd.Flags().StringVar(&adapterName, "adapter", "", "network adapter name (default: the active adapter)")
	runCmd.Flags().StringVar(&provider, "provider", "", "DNS provider for set-dns (default: dns.default_provider)")
	allCmd.Flags().StringVar(&adapterName, "adapter", "", "network adapter name (default: the active adapter)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(allCmd)
}

// commandContext is cancelled by Ctrl-C or SIGTERM. A bulk run stops between
// steps and reports the rest as skipped.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func completeOperations(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, op := range engine.Operations() {
		names = append(names, op.Name+"\t"+op.Summary)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func runOperation(cmd *cobra.Command, args []string) error {
	operation := args[0]
	summary, err := engine.Describe(operation)
	if err != nil {
		return fmt.Errorf("%w (see 'gametune list')", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	p := provider
	if p == "" && operation == engine.OpSetDNS {
		p = cfg.DNS.DefaultProvider
	}
	return applyOne(ctx, summary, operation, p)
}

// applyOne runs a single operation and renders its one-step report.
func applyOne(ctx context.Context, title, operation, dnsProvider string) error {
	return withBackend(ctx, func(b backend) error {
		adapter, err := resolveAdapter(ctx, b, adapterName)
		if err != nil {
			return err
		}

		report, err := b.Run(ctx, operation, engine.Args{Adapter: adapter, Provider: dnsProvider})
		if err != nil {
			return err
		}
		return renderReport(title, report)
	})
}

func runList(_ *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tDESCRIPTION\tIN 'all'")

	inAll := make(map[string]bool)
	for _, name := range engine.RunAllOrder() {
		inAll[name] = true
	}
	for _, op := range engine.Operations() {
		mark := ""
		if inAll[op.Name] {
			mark = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", op.Name, op.Summary, mark)
	}
	return w.Flush()
}

func runAll(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return withBackend(ctx, func(b backend) error {
		adapter, err := resolveAdapter(ctx, b, adapterName)
		if err != nil {
			return err
		}

		report, err := b.RunAll(ctx, adapter)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			printInfo("Interrupted, remaining steps were skipped")
		}
		return renderReport("Full optimization", report)
	})
}
