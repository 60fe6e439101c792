package backup

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// memJournal is an in-memory Journal for tests.
type memJournal struct {
	mu      sync.Mutex
	entries map[string]Entry
	failPut error
	puts    int
}

func newMemJournal() *memJournal {
	return &memJournal{entries: make(map[string]Entry)}
}

func (m *memJournal) Put(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut != nil {
		return m.failPut
	}
	m.entries[string(e.Record.Category)+"/"+e.Record.Key] = e
	return nil
}

func (m *memJournal) Delete(c types.Category, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, string(c)+"/"+key)
	return nil
}

func (m *memJournal) Entries() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	// unordered on purpose: Open must sort by Seq
	sort.Slice(out, func(i, j int) bool { return out[i].Record.Key > out[j].Record.Key })
	return out, nil
}

func (m *memJournal) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
	return nil
}

func value(v string) Fetcher {
	return func() (types.Value, error) { return types.Present(v), nil }
}

func TestSnapshotIfAbsent_FirstWriteWins(t *testing.T) {
	store := New()

	store.SnapshotIfAbsent(types.CategoryTCP, "Internet/Timestamps", value("Enabled"))

	called := false
	store.SnapshotIfAbsent(types.CategoryTCP, "Internet/Timestamps", func() (types.Value, error) {
		called = true
		return types.Present("Disabled"), nil
	})

	assert.False(t, called, "fetcher must not run when a record exists")
	rec, ok := store.Record(types.CategoryTCP, "Internet/Timestamps")
	require.True(t, ok)
	assert.Equal(t, "Enabled", rec.Prior)
	assert.Equal(t, 1, store.Len())
}

func TestSnapshotIfAbsent_SameKeyDifferentCategory(t *testing.T) {
	store := New()
	store.SnapshotIfAbsent(types.CategoryService, "SysMain", value("auto"))
	store.SnapshotIfAbsent(types.CategoryMemory, "SysMain", value("auto"))
	assert.Equal(t, 2, store.Len())
}

func TestSnapshotIfAbsent_FetchErrorLeavesKeyUnsnapshotted(t *testing.T) {
	var lines []string
	store := New(WithLogger(func(msg string) { lines = append(lines, msg) }))

	store.SnapshotIfAbsent(types.CategoryGPU, "HwSchMode", func() (types.Value, error) {
		return types.Value{}, errors.New("access denied")
	})

	_, ok := store.Record(types.CategoryGPU, "HwSchMode")
	assert.False(t, ok)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "gpu/HwSchMode")

	// a later successful fetch is recorded
	store.SnapshotIfAbsent(types.CategoryGPU, "HwSchMode", value("dword:1"))
	rec, ok := store.Record(types.CategoryGPU, "HwSchMode")
	require.True(t, ok)
	assert.Equal(t, "dword:1", rec.Prior)
}

func TestSnapshotIfAbsent_RecordsAbsence(t *testing.T) {
	store := New()
	store.SnapshotIfAbsent(types.CategoryVisual, "VisualFXSetting", func() (types.Value, error) {
		return types.Missing(), nil
	})

	rec, ok := store.Record(types.CategoryVisual, "VisualFXSetting")
	require.True(t, ok)
	assert.True(t, rec.Absent)
	assert.Empty(t, rec.Prior)
}

func TestConsumeAll(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := New(WithClock(func() time.Time { return now }), WithSession("session-1"))

	store.SnapshotIfAbsent(types.CategoryTCP, "a", value("1"))
	store.SnapshotIfAbsent(types.CategoryDNS, "b", value("2"))
	store.SnapshotIfAbsent(types.CategoryPower, "c", value("3"))

	records := store.ConsumeAll()
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{records[0].Key, records[1].Key, records[2].Key})
	assert.Equal(t, now, records[0].AppliedAt)
	assert.Equal(t, "session-1", store.Session())

	for _, r := range records {
		_, ok := store.Record(r.Category, r.Key)
		assert.False(t, ok)
	}
	assert.Empty(t, store.ConsumeAll())
}

func TestTake(t *testing.T) {
	store := New()
	store.SnapshotIfAbsent(types.CategoryService, "XblAuthManager", value("manual"))
	store.SnapshotIfAbsent(types.CategoryService, "XblGameSave", value("manual"))
	store.SnapshotIfAbsent(types.CategoryService, "XboxNetApiSvc", value("auto"))

	rec, ok := store.Take(types.CategoryService, "XblGameSave")
	require.True(t, ok)
	assert.Equal(t, "manual", rec.Prior)

	_, ok = store.Take(types.CategoryService, "XblGameSave")
	assert.False(t, ok)

	// index stays consistent after removal from the middle
	rec, ok = store.Record(types.CategoryService, "XboxNetApiSvc")
	require.True(t, ok)
	assert.Equal(t, "auto", rec.Prior)
	assert.Len(t, store.Records(), 2)
}

func TestNew_GeneratesSession(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.Session())
	assert.NotEqual(t, a.Session(), b.Session())
}

func TestJournal_WriteThroughAndReload(t *testing.T) {
	j := newMemJournal()
	store, err := Open(j)
	require.NoError(t, err)

	store.SnapshotIfAbsent(types.CategoryTCP, "a", value("1"))
	store.SnapshotIfAbsent(types.CategoryTCP, "b", value("2"))
	store.SnapshotIfAbsent(types.CategoryTCP, "a", value("ignored"))
	assert.Equal(t, 2, j.puts)

	reloaded, err := Open(j)
	require.NoError(t, err)
	records := reloaded.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Key, "reload keeps creation order")

	// sequence numbers continue after the reloaded ones
	reloaded.SnapshotIfAbsent(types.CategoryTCP, "c", value("3"))
	entries, _ := j.Entries()
	var maxSeq uint64
	for _, e := range entries {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	assert.Equal(t, uint64(3), maxSeq)

	reloaded.Take(types.CategoryTCP, "b")
	reloaded.ConsumeAll()
	entries, _ = j.Entries()
	assert.Empty(t, entries)
}

func TestJournal_FailureIsNotFatal(t *testing.T) {
	j := newMemJournal()
	j.failPut = errors.New("disk full")
	store := New(WithJournal(j))

	store.SnapshotIfAbsent(types.CategoryGPU, "HwSchMode", value("dword:1"))
	_, ok := store.Record(types.CategoryGPU, "HwSchMode")
	assert.True(t, ok)
}

func TestConcurrentSnapshots(t *testing.T) {
	store := New()
	var wg sync.WaitGroup
	var calls int
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.SnapshotIfAbsent(types.CategoryTCP, "shared", func() (types.Value, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return types.Present("x"), nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.Len())
}
