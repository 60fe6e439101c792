package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/gametune/dnsbench"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/output"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the active network adapter",
	Long:  `Show the adapter that carries the default route, the one optimizations act on.`,
	Args:  cobra.NoArgs,
	RunE:  runDetect,
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List network adapters",
	Args:  cobra.NoArgs,
	RunE:  runAdapters,
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Manage DNS servers",
}

var dnsSetCmd = &cobra.Command{
	Use:   "set [provider]",
	Short: "Point an adapter at a public DNS provider",
	Long: `Point the active adapter (or --adapter) at a public DNS provider.
Without an argument dns.default_provider is used. 'gametune restore' puts the
previous servers back, including a DHCP-assigned configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDNSSet,
}

var dnsProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List known DNS providers",
	Args:  cobra.NoArgs,
	RunE:  runDNSProviders,
}

var dnsBenchCmd = &cobra.Command{
	Use:   "bench [provider...]",
	Short: "Compare resolver latency",
	Long: `Query each provider's servers a few times and rank them by median latency.
Without arguments every known provider is measured.`,
	RunE: runDNSBench,
}

var (
	benchAttempts int
	benchTimeout  time.Duration
)

func init() {
	dnsSetCmd.Flags().StringVar(&adapterName, "adapter", "", "network adapter name (default: the active adapter)")
	dnsBenchCmd.Flags().IntVar(&benchAttempts, "attempts", 5, "queries per server")
	dnsBenchCmd.Flags().DurationVar(&benchTimeout, "timeout", 2*time.Second, "timeout per query")

	dnsCmd.AddCommand(dnsSetCmd)
	dnsCmd.AddCommand(dnsProvidersCmd)
	dnsCmd.AddCommand(dnsBenchCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(adaptersCmd)
	rootCmd.AddCommand(dnsCmd)
}

func runDetect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return withBackend(ctx, func(b backend) error {
		_, active, err := b.Adapters(ctx)
		if err != nil {
			return err
		}
		if active == nil {
			return errors.New("no active network adapter: nothing is connected or no adapter carries the default route")
		}
		return render(&output.View{Title: "Active adapter", Adapters: []types.AdapterIdentity{*active}})
	})
}

func runAdapters(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return withBackend(ctx, func(b backend) error {
		adapters, _, err := b.Adapters(ctx)
		if err != nil {
			return err
		}
		if len(adapters) == 0 {
			printInfo("No network adapters found.")
			return nil
		}
		return render(&output.View{Title: "Network adapters", Adapters: adapters})
	})
}

func runDNSSet(cmd *cobra.Command, args []string) error {
	p := cfg.DNS.DefaultProvider
	if len(args) > 0 {
		p = args[0]
	}

	table := currentTable(cmd.Context())
	if _, ok := table.Provider(p); !ok {
		return fmt.Errorf("%w: unknown DNS provider %q (known: %v)", types.ErrInvalidArgument, p, table.ProviderNames())
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	return applyOne(ctx, "DNS: "+p, engine.OpSetDNS, p)
}

func runDNSProviders(cmd *cobra.Command, _ []string) error {
	table := currentTable(cmd.Context())
	for _, name := range table.ProviderNames() {
		p, _ := table.Provider(name)
		marker := ""
		if name == cfg.DNS.DefaultProvider {
			marker = " (default)"
		}
		fmt.Fprintf(stdout, "%-12s %-16s %s%s\n", name, p.Primary, p.Secondary, marker)
	}
	return nil
}

func runDNSBench(cmd *cobra.Command, args []string) error {
	table := currentTable(cmd.Context())

	var providers []tables.DNSProvider
	if len(args) == 0 {
		for _, name := range table.ProviderNames() {
			p, _ := table.Provider(name)
			providers = append(providers, p)
		}
	} else {
		for _, name := range args {
			p, ok := table.Provider(name)
			if !ok {
				return fmt.Errorf("%w: unknown DNS provider %q", types.ErrInvalidArgument, name)
			}
			providers = append(providers, p)
		}
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })

	ctx, cancel := commandContext(cmd)
	defer cancel()

	progress().Logf("Measuring %d provider(s), %d queries per server...", len(providers), benchAttempts)
	bencher := dnsbench.New(dnsbench.WithAttempts(benchAttempts), dnsbench.WithTimeout(benchTimeout))
	results := bencher.Run(ctx, providers)

	return render(&output.View{Title: "DNS latency", Bench: results})
}

// currentTable is the version table with config overrides, for commands that
// only read it.
func currentTable(ctx context.Context) *tables.Table {
	base := pinnedTable
	if base == nil {
		if ctx == nil {
			ctx = context.Background()
		}
		base = tables.Detect(ctx)
	}
	return base.Apply(cfg.TableOverrides())
}
