package network

import (
	"context"
	"fmt"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// OptimizeTCPStack applies the global TCP parameters from the table. Each
// parameter is its own backup key. A parameter that fails does not stop the
// others; the result fails if any parameter did.
func (o *Optimizer) OptimizeTCPStack(ctx context.Context) types.Result {
	o.log.Logf("Optimizing TCP/IP stack...")

	var (
		details   []string
		firstFail error
	)

	for _, p := range o.table.TCP {
		current, readErr := o.stack.TCPSetting(ctx, p.Template, p.Name)
		if readErr == nil && current == p.Value {
			details = append(details, fmt.Sprintf("%s: already %s", p.Name, p.Value))
			continue
		}

		o.store.SnapshotIfAbsent(types.CategoryTCP, p.Key(), fetchOnce(current, readErr))

		if err := o.stack.SetTCPSetting(ctx, p.Template, p.Name, p.Value); err != nil {
			logger.Warn("TCP parameter failed", "param", p.Key(), "error", err)
			details = append(details, fmt.Sprintf("%s: failed (%v)", p.Name, err))
			if firstFail == nil {
				firstFail = err
			}
			continue
		}

		logger.Info("TCP parameter applied", "param", p.Key(), "from", current, "to", p.Value)
		details = append(details, fmt.Sprintf("%s: %s", p.Name, p.Value))
	}

	if firstFail != nil {
		o.log.Logf("TCP/IP optimization incomplete")
		return types.Result{
			Kind:    types.Classify(firstFail),
			Message: types.Summarize("TCP/IP optimization incomplete", details),
		}
	}

	o.log.Logf("TCP/IP stack optimized")
	return types.OK("%s", types.Summarize("TCP/IP stack optimized", details))
}
