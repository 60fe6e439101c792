package network

import (
	"context"
	"strings"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// SetDNS points the adapter at a provider from the table. The prior resolver
// list is recorded under the adapter name; an empty prior means DHCP.
// An unknown provider fails with InvalidArgument before anything is read.
func (o *Optimizer) SetDNS(ctx context.Context, provider string, id *types.AdapterIdentity) types.Result {
	p, ok := o.table.Provider(provider)
	if !ok {
		o.log.Logf("Unknown DNS provider %q", provider)
		return types.Fail(types.KindInvalidArgument, "unknown DNS provider %q (known: %s)",
			provider, strings.Join(o.table.ProviderNames(), ", "))
	}

	adapter, err := o.resolve(ctx, id)
	if err != nil {
		o.log.Logf("DNS change failed: %v", err)
		return types.FromError("set DNS", err)
	}

	o.store.SnapshotIfAbsent(types.CategoryDNS, adapter.Name, func() (types.Value, error) {
		servers, err := o.stack.DNSServers(ctx, adapter.Index)
		if err != nil {
			return types.Value{}, err
		}
		return types.Present(strings.Join(servers, ",")), nil
	})

	servers := p.Servers()
	if err := o.stack.SetDNSServers(ctx, adapter.Index, servers); err != nil {
		logger.Error("DNS change failed", "adapter", adapter.Name, "provider", p.Name, "error", err)
		o.log.Logf("DNS change failed: %v", err)
		return types.FromError("set DNS", err)
	}

	logger.Info("DNS changed", "adapter", adapter.Name, "provider", p.Name, "servers", servers)
	o.log.Logf("DNS set to %s (%s) on %s", p.Name, strings.Join(servers, ", "), adapter.Name)
	return types.OK("DNS set to %s (%s) on %s", p.Name, strings.Join(servers, ", "), adapter.Name)
}

func splitServers(prior string) []string {
	if prior == "" {
		return nil
	}
	return strings.Split(prior, ",")
}
