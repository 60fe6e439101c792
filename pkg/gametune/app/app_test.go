package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/platform/platformtest"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Backup.JournalEnabled = true
	cfg.Backup.JournalPath = filepath.Join(dir, "journal")
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(dir, "history")
	return cfg
}

func TestOpen_JournalCarriesRecordsAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	m := platformtest.NewMachine()
	m.Services.Add("SysMain", platform.StartAuto, platform.StateRunning)

	first, err := Open(ctx, cfg, m.System(), nil, WithTable(tables.ForBuild(tables.BuildWindows11)))
	require.NoError(t, err)
	res := first.Session.Do(ctx, engine.OpDisableSysmain, engine.Args{})
	require.True(t, res.Success, res.Message)
	require.NoError(t, first.Close())

	svc, _ := m.Services.Get("SysMain")
	require.Equal(t, platform.StartDisabled, svc.Mode)

	second, err := Open(ctx, cfg, m.System(), nil, WithTable(tables.ForBuild(tables.BuildWindows11)))
	require.NoError(t, err)
	defer second.Close()

	records := second.Session.Backup()
	require.Len(t, records, 1)
	assert.Equal(t, "auto", records[0].Prior)

	_, err = second.Session.Restore(ctx)
	require.NoError(t, err)
	svc, _ = m.Services.Get("SysMain")
	assert.Equal(t, platform.StartAuto, svc.Mode)

	entries, err := second.History.List(10)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one single op and one restore")
}

func TestOpen_AppliesOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.JournalEnabled = false
	cfg.History.Enabled = false
	cfg.DNS.Providers = map[string]tables.DNSProvider{
		"lan": {Primary: "10.0.0.53"},
	}

	env, err := Open(context.Background(), cfg, platformtest.NewMachine().System(), nil,
		WithTable(tables.ForBuild(tables.BuildWindows11)))
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Journal)
	assert.Nil(t, env.History)
	p, ok := env.Table.Provider("lan")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.53", p.Primary)
}

func TestOpen_JournalLocked(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	sys := platformtest.NewMachine().System()
	table := WithTable(tables.ForBuild(tables.BuildWindows11))

	held, err := Open(context.Background(), cfg, sys, nil, table)
	require.NoError(t, err)
	defer held.Close()

	_, err = Open(context.Background(), cfg, sys, nil, table)
	assert.Error(t, err)
}
