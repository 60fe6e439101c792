package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// propertyKey is the backup key of an adapter property: "<adapter>/<keyword>".
func propertyKey(adapter, keyword string) string {
	return adapter + "/" + keyword
}

// OptimizeAdapter writes every adapter property from the table, snapshotting
// each one first. Properties the driver does not expose are skipped. The result
// succeeds when every critical property the driver exposes was applied.
func (o *Optimizer) OptimizeAdapter(ctx context.Context, id *types.AdapterIdentity) types.Result {
	adapter, err := o.resolve(ctx, id)
	if err != nil {
		o.log.Logf("Adapter optimization failed: %v", err)
		return types.FromError("optimize adapter", err)
	}

	o.log.Logf("Optimizing adapter %s...", id)

	var (
		details         []string
		applied         int
		supported       int
		criticalFailure error
	)

	for _, p := range o.table.AdapterProperties {
		current, err := o.stack.AdapterProperty(ctx, adapter.Name, p.Keyword)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			details = append(details, p.Description+": not supported")
			continue
		case isPermission(err):
			o.log.Logf("Permission denied reading %s", p.Keyword)
			return types.FromError("optimize adapter", err)
		case err != nil:
			details = append(details, fmt.Sprintf("%s: read failed (%v)", p.Description, err))
			if p.Critical && criticalFailure == nil {
				criticalFailure = err
			}
			continue
		}
		supported++

		if current == p.Value {
			applied++
			details = append(details, p.Description+": already set")
			continue
		}

		o.store.SnapshotIfAbsent(types.CategoryNetwork, propertyKey(adapter.Name, p.Keyword), fetchOnce(current, nil))

		if err := o.stack.SetAdapterProperty(ctx, adapter.Name, p.Keyword, p.Value); err != nil {
			if isPermission(err) {
				o.log.Logf("Permission denied writing %s", p.Keyword)
				return types.FromError("optimize adapter", err)
			}
			logger.Warn("adapter property failed", "adapter", adapter.Name, "keyword", p.Keyword, "error", err)
			details = append(details, fmt.Sprintf("%s: failed (%v)", p.Description, err))
			if p.Critical && criticalFailure == nil {
				criticalFailure = err
			}
			continue
		}

		applied++
		logger.Info("adapter property applied", "adapter", adapter.Name, "keyword", p.Keyword, "from", current, "to", p.Value)
		details = append(details, p.Description+": applied")
	}

	switch {
	case criticalFailure != nil:
		o.log.Logf("Adapter %s: critical settings failed", id)
		return types.Result{
			Kind:    types.Classify(criticalFailure),
			Message: types.Summarize(fmt.Sprintf("Critical settings failed on %s", id), details),
		}
	case supported == 0:
		o.log.Logf("Adapter %s exposes none of the tuned settings", id)
		return types.Fail(types.KindUnsupported, "%s", types.Summarize(fmt.Sprintf("No tunable settings on %s", id), details))
	}

	o.log.Logf("Adapter %s optimized (%d/%d settings)", id, applied, supported)
	return types.OK("%s", types.Summarize(fmt.Sprintf("Optimized %s", id), details))
}
