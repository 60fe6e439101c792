package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/platform/platformtest"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

type fixture struct {
	net   *platformtest.Network
	store *backup.Store
	opt   *Optimizer
	lines []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{net: platformtest.NewNetwork()}
	f.store = backup.New()
	f.opt = New(f.net, f.store, tables.ForBuild(tables.BuildWindows11), func(msg string) {
		f.lines = append(f.lines, msg)
	})
	return f
}

func nicProperties() map[string]string {
	return map[string]string{
		"*InterruptModeration": "1",
		"*FlowControl":         "3",
		"*EEE":                 "1",
	}
}

func TestDetectActiveAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("lowest metric wins", func(t *testing.T) {
		f := newFixture(t)
		f.net.AddAdapter(platform.Adapter{Name: "Wi-Fi", Index: 7, Status: "Up"}, nil)
		f.net.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Up"}, nil)
		f.net.AddRoute(platform.Route{InterfaceIndex: 7, RouteMetric: 0, InterfaceMetric: 35})
		f.net.AddRoute(platform.Route{InterfaceIndex: 12, RouteMetric: 0, InterfaceMetric: 25})

		id, err := f.opt.DetectActiveAdapter(ctx)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, types.AdapterIdentity{Name: "Ethernet", Index: 12, IsActive: true}, *id)
	})

	t.Run("tie goes to lower index", func(t *testing.T) {
		f := newFixture(t)
		f.net.AddAdapter(platform.Adapter{Name: "B", Index: 9, Status: "Up"}, nil)
		f.net.AddAdapter(platform.Adapter{Name: "A", Index: 4, Status: "Up"}, nil)
		f.net.AddRoute(platform.Route{InterfaceIndex: 9, InterfaceMetric: 25})
		f.net.AddRoute(platform.Route{InterfaceIndex: 4, InterfaceMetric: 25})

		id, err := f.opt.DetectActiveAdapter(ctx)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "A", id.Name)
	})

	t.Run("disconnected adapter ignored", func(t *testing.T) {
		f := newFixture(t)
		f.net.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Disconnected"}, nil)
		f.net.AddAdapter(platform.Adapter{Name: "Wi-Fi", Index: 7, Status: "Up"}, nil)
		f.net.AddRoute(platform.Route{InterfaceIndex: 12, InterfaceMetric: 5})
		f.net.AddRoute(platform.Route{InterfaceIndex: 7, InterfaceMetric: 50})

		id, err := f.opt.DetectActiveAdapter(ctx)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "Wi-Fi", id.Name)
	})

	t.Run("no default route", func(t *testing.T) {
		f := newFixture(t)
		f.net.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Up"}, nil)

		id, err := f.opt.DetectActiveAdapter(ctx)
		require.NoError(t, err)
		assert.Nil(t, id)
		assert.Contains(t, f.lines, "No active network adapter found")
	})

	t.Run("query failure", func(t *testing.T) {
		f := newFixture(t)
		f.net.Fail["DefaultRoutes"] = errors.New("wmi timeout")

		id, err := f.opt.DetectActiveAdapter(ctx)
		require.Error(t, err)
		assert.Nil(t, id)
	})
}

func TestListAdapters(t *testing.T) {
	f := newFixture(t)
	f.net.AddAdapter(platform.Adapter{Name: "Wi-Fi", Index: 7, Status: "Up"}, nil)
	f.net.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 3, Status: "Up"}, nil)
	f.net.AddRoute(platform.Route{InterfaceIndex: 7, InterfaceMetric: 35})

	ids, err := f.opt.ListAdapters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.AdapterIdentity{
		{Name: "Ethernet", Index: 3},
		{Name: "Wi-Fi", Index: 7, IsActive: true},
	}, ids)
}

func ethernet(f *fixture) *types.AdapterIdentity {
	f.net.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Up"}, nicProperties())
	f.net.AddRoute(platform.Route{InterfaceIndex: 12, InterfaceMetric: 25})
	return &types.AdapterIdentity{Name: "Ethernet", Index: 12, IsActive: true}
}

func TestOptimizeAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("applies supported properties", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)

		res := f.opt.OptimizeAdapter(ctx, id)
		require.True(t, res.Success, res.Message)
		assert.Contains(t, res.Message, "Green Ethernet: not supported")

		v, _ := f.net.Property("Ethernet", "*FlowControl")
		assert.Equal(t, "0", v)

		rec, ok := f.store.Record(types.CategoryNetwork, "Ethernet/*FlowControl")
		require.True(t, ok)
		assert.Equal(t, "3", rec.Prior)
		assert.Equal(t, 3, f.store.Len())
	})

	t.Run("reapply keeps first prior", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)

		require.True(t, f.opt.OptimizeAdapter(ctx, id).Success)
		res := f.opt.OptimizeAdapter(ctx, id)
		require.True(t, res.Success)
		assert.Contains(t, res.Message, "already set")

		rec, ok := f.store.Record(types.CategoryNetwork, "Ethernet/*InterruptModeration")
		require.True(t, ok)
		assert.Equal(t, "1", rec.Prior)
	})

	t.Run("nil adapter", func(t *testing.T) {
		f := newFixture(t)
		res := f.opt.OptimizeAdapter(ctx, nil)
		assert.False(t, res.Success)
		assert.Equal(t, types.KindNotFound, res.Kind)
		assert.Zero(t, f.store.Len())
	})

	t.Run("adapter vanished", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)
		f.net.RemoveAdapter("Ethernet")

		res := f.opt.OptimizeAdapter(ctx, id)
		assert.False(t, res.Success)
		assert.Equal(t, types.KindNotFound, res.Kind)
		assert.Zero(t, f.net.Writes)
	})

	t.Run("critical failure", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)
		f.net.Fail["SetAdapterProperty:*FlowControl"] = errors.New("driver rejected value")

		res := f.opt.OptimizeAdapter(ctx, id)
		assert.False(t, res.Success)
		assert.Equal(t, types.KindUnknown, res.Kind)
		assert.Contains(t, res.Message, "Flow control: failed")
	})

	t.Run("permission denied aborts", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)
		f.net.Fail["SetAdapterProperty"] = platform.ErrPermissionDenied

		res := f.opt.OptimizeAdapter(ctx, id)
		assert.False(t, res.Success)
		assert.Equal(t, types.KindPermissionDenied, res.Kind)
	})

	t.Run("nothing supported", func(t *testing.T) {
		f := newFixture(t)
		f.net.AddAdapter(platform.Adapter{Name: "vEthernet", Index: 30, Status: "Up"}, nil)

		res := f.opt.OptimizeAdapter(ctx, &types.AdapterIdentity{Name: "vEthernet", Index: 30})
		assert.False(t, res.Success)
		assert.Equal(t, types.KindUnsupported, res.Kind)
	})
}

func seedTCP(f *fixture) {
	f.net.SeedTCP("Internet", "CongestionProvider", "CUBIC")
	f.net.SeedTCP("Internet", "AutoTuningLevelLocal", "Normal")
	f.net.SeedTCP("Internet", "Timestamps", "Allowed")
}

func TestOptimizeTCPStack(t *testing.T) {
	ctx := context.Background()

	t.Run("applies and snapshots", func(t *testing.T) {
		f := newFixture(t)
		seedTCP(f)

		res := f.opt.OptimizeTCPStack(ctx)
		require.True(t, res.Success, res.Message)
		assert.Equal(t, "CTCP", f.net.TCP("Internet", "CongestionProvider"))
		assert.Equal(t, "Disabled", f.net.TCP("Internet", "Timestamps"))
		assert.Equal(t, 2, f.net.Writes)

		rec, ok := f.store.Record(types.CategoryTCP, "Internet/CongestionProvider")
		require.True(t, ok)
		assert.Equal(t, "CUBIC", rec.Prior)
	})

	t.Run("partial failure continues", func(t *testing.T) {
		f := newFixture(t)
		seedTCP(f)
		f.net.Fail["SetTCPSetting:CongestionProvider"] = platform.ErrPermissionDenied

		res := f.opt.OptimizeTCPStack(ctx)
		assert.False(t, res.Success)
		assert.Equal(t, types.KindPermissionDenied, res.Kind)
		assert.Equal(t, "Disabled", f.net.TCP("Internet", "Timestamps"))
	})

	t.Run("idempotent", func(t *testing.T) {
		f := newFixture(t)
		seedTCP(f)

		require.True(t, f.opt.OptimizeTCPStack(ctx).Success)
		writes := f.net.Writes
		require.True(t, f.opt.OptimizeTCPStack(ctx).Success)
		assert.Equal(t, writes, f.net.Writes)

		rec, _ := f.store.Record(types.CategoryTCP, "Internet/Timestamps")
		assert.Equal(t, "Allowed", rec.Prior)
	})
}

func TestSetDNS(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider touches nothing", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)

		res := f.opt.SetDNS(ctx, "nosuchdns", id)
		assert.False(t, res.Success)
		assert.Equal(t, types.KindInvalidArgument, res.Kind)
		assert.Zero(t, f.store.Len())
		assert.Zero(t, f.net.Writes)
	})

	t.Run("sets and snapshots DHCP", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)

		res := f.opt.SetDNS(ctx, "Cloudflare", id)
		require.True(t, res.Success, res.Message)
		assert.Equal(t, []string{"1.1.1.1", "1.0.0.1"}, f.net.DNS(12))

		rec, ok := f.store.Record(types.CategoryDNS, "Ethernet")
		require.True(t, ok)
		assert.Equal(t, "", rec.Prior)
	})

	t.Run("switching provider keeps original", func(t *testing.T) {
		f := newFixture(t)
		id := ethernet(f)
		f.net.SeedDNS(12, "192.168.1.1")

		require.True(t, f.opt.SetDNS(ctx, "google", id).Success)
		require.True(t, f.opt.SetDNS(ctx, "quad9", id).Success)

		rec, _ := f.store.Record(types.CategoryDNS, "Ethernet")
		assert.Equal(t, "192.168.1.1", rec.Prior)
		assert.Equal(t, []string{"9.9.9.9", "149.112.112.112"}, f.net.DNS(12))
	})

	t.Run("nil adapter", func(t *testing.T) {
		f := newFixture(t)
		res := f.opt.SetDNS(ctx, "google", nil)
		assert.Equal(t, types.KindNotFound, res.Kind)
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := ethernet(f)
	seedTCP(f)
	f.net.SeedDNS(12, "192.168.1.1", "192.168.1.2")

	require.True(t, f.opt.OptimizeAdapter(ctx, id).Success)
	require.True(t, f.opt.OptimizeTCPStack(ctx).Success)
	require.True(t, f.opt.SetDNS(ctx, "opendns", id).Success)

	for _, rec := range f.store.ConsumeAll() {
		require.NoError(t, f.opt.Restore(ctx, rec), rec.String())
	}

	v, _ := f.net.Property("Ethernet", "*InterruptModeration")
	assert.Equal(t, "1", v)
	v, _ = f.net.Property("Ethernet", "*EEE")
	assert.Equal(t, "1", v)
	assert.Equal(t, "CUBIC", f.net.TCP("Internet", "CongestionProvider"))
	assert.Equal(t, "Allowed", f.net.TCP("Internet", "Timestamps"))
	assert.Equal(t, []string{"192.168.1.1", "192.168.1.2"}, f.net.DNS(12))
}

func TestRestoreDHCP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := ethernet(f)

	require.True(t, f.opt.SetDNS(ctx, "google", id).Success)
	rec, _ := f.store.Take(types.CategoryDNS, "Ethernet")
	require.NoError(t, f.opt.Restore(ctx, rec))

	assert.Empty(t, f.net.DNS(12))
	assert.Contains(t, f.lines[len(f.lines)-1], "DHCP")
}

func TestRestoreErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.opt.Restore(ctx, types.TweakRecord{Category: types.CategoryGPU, Key: "x"})
	assert.ErrorIs(t, err, platform.ErrInvalidArgument)

	err = f.opt.Restore(ctx, types.TweakRecord{Category: types.CategoryNetwork, Key: "noslash"})
	assert.ErrorIs(t, err, platform.ErrInvalidArgument)

	err = f.opt.Restore(ctx, types.TweakRecord{Category: types.CategoryDNS, Key: "Gone"})
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestPropertyKeyWithSlash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.net.AddAdapter(platform.Adapter{Name: "LAN 1/2", Index: 5, Status: "Up"}, map[string]string{"*FlowControl": "0"})

	rec := types.TweakRecord{Category: types.CategoryNetwork, Key: propertyKey("LAN 1/2", "*FlowControl"), Prior: "3"}
	require.NoError(t, f.opt.Restore(ctx, rec))

	v, _ := f.net.Property("LAN 1/2", "*FlowControl")
	assert.Equal(t, "3", v)
}
