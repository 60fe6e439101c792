package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// Restore writes a recorded prior value back.
func (o *Optimizer) Restore(ctx context.Context, rec types.TweakRecord) error {
	switch rec.Category {
	case types.CategoryNetwork:
		return o.restoreProperty(ctx, rec)
	case types.CategoryTCP:
		return o.restoreTCP(ctx, rec)
	case types.CategoryDNS:
		return o.restoreDNS(ctx, rec)
	default:
		return fmt.Errorf("%w: network cannot restore category %s", platform.ErrInvalidArgument, rec.Category)
	}
}

func (o *Optimizer) restoreProperty(ctx context.Context, rec types.TweakRecord) error {
	// keywords never contain '/', adapter names might
	i := strings.LastIndex(rec.Key, "/")
	if i <= 0 {
		return fmt.Errorf("%w: adapter property key %q", platform.ErrInvalidArgument, rec.Key)
	}
	adapter, keyword := rec.Key[:i], rec.Key[i+1:]

	if err := o.stack.SetAdapterProperty(ctx, adapter, keyword, rec.Prior); err != nil {
		return fmt.Errorf("restoring %s: %w", rec.Key, err)
	}
	o.log.Logf("Restored %s on %s to %s", keyword, adapter, rec.Prior)
	return nil
}

func (o *Optimizer) restoreTCP(ctx context.Context, rec types.TweakRecord) error {
	template, name, ok := strings.Cut(rec.Key, "/")
	if !ok {
		return fmt.Errorf("%w: TCP key %q", platform.ErrInvalidArgument, rec.Key)
	}
	if err := o.stack.SetTCPSetting(ctx, template, name, rec.Prior); err != nil {
		return fmt.Errorf("restoring TCP %s: %w", rec.Key, err)
	}
	o.log.Logf("Restored TCP %s to %s", name, rec.Prior)
	return nil
}

func (o *Optimizer) restoreDNS(ctx context.Context, rec types.TweakRecord) error {
	adapter, err := o.adapterByName(ctx, rec.Key)
	if err != nil {
		return fmt.Errorf("restoring DNS: %w", err)
	}

	servers := splitServers(rec.Prior)
	if err := o.stack.SetDNSServers(ctx, adapter.Index, servers); err != nil {
		return fmt.Errorf("restoring DNS on %s: %w", adapter.Name, err)
	}

	if len(servers) == 0 {
		o.log.Logf("Restored DNS on %s to automatic (DHCP)", adapter.Name)
	} else {
		o.log.Logf("Restored DNS on %s to %s", adapter.Name, strings.Join(servers, ", "))
	}
	return nil
}
