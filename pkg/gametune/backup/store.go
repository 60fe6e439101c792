// Package backup provides the State Store: pre-mutation snapshots of every value
// gametune touches, so each change can be reverted.
//
// The store keeps at most one record per (category, key). The first snapshot wins:
// re-applying a tweak never overwrites the recorded prior value, so a restore always
// returns to the value the machine had before gametune first touched it.
//
// Basic usage:
//
//	store := backup.New(backup.WithLogger(logf))
//	store.SnapshotIfAbsent(types.CategoryTCP, "Internet/Timestamps", func() (types.Value, error) {
//	    return readTimestamps(ctx)
//	})
//	// ... mutate ...
//	for _, rec := range store.ConsumeAll() {
//	    // restore rec
//	}
package backup

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// logger is the package-level logger for backup operations.
var logger = logging.Get("backup")

// Entry is a record together with the bookkeeping a Journal persists.
type Entry struct {
	Seq     uint64            `json:"seq"`
	Session string            `json:"session"`
	Record  types.TweakRecord `json:"record"`
}

// Journal persists backup entries so a restore survives a process restart.
// Store treats every Journal error as non-fatal.
type Journal interface {
	// Put stores or replaces the entry for its (category, key).
	Put(entry Entry) error

	// Delete removes the entry for (category, key), if any.
	Delete(category types.Category, key string) error

	// Entries returns all persisted entries in any order.
	Entries() ([]Entry, error)

	// Clear removes all entries.
	Clear() error
}

// Fetcher reads the live value of a key.
type Fetcher func() (types.Value, error)

type recordKey struct {
	category types.Category
	key      string
}

// Store is the in-memory backup for one session, optionally written through to a
// Journal. It is safe for concurrent use, but callers that need first-write-wins
// across a check-then-mutate sequence must serialize their mutations.
type Store struct {
	mu      sync.Mutex
	session string
	entries []Entry
	index   map[recordKey]int
	nextSeq uint64

	journal Journal
	log     types.LogFunc
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithJournal writes every new record through to j.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

// WithLogger sends human-readable progress lines to log.
func WithLogger(log types.LogFunc) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithSession sets the session identifier instead of generating one.
func WithSession(id string) Option {
	return func(s *Store) {
		s.session = id
	}
}

// WithClock overrides the timestamp source. Tests use it for determinism.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		index:   make(map[recordKey]int),
		nextSeq: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == "" {
		s.session = uuid.New().String()
	}
	return s
}

// Open creates a Store pre-loaded with the entries of journal, so records from a
// previous process can still be restored. Loading errors are returned; the Store
// is not created in that case.
func Open(journal Journal, opts ...Option) (*Store, error) {
	s := New(append(opts, WithJournal(journal))...)

	persisted, err := journal.Entries()
	if err != nil {
		return nil, err
	}

	sort.Slice(persisted, func(i, j int) bool {
		return persisted[i].Seq < persisted[j].Seq
	})
	for _, e := range persisted {
		k := recordKey{category: e.Record.Category, key: e.Record.Key}
		if _, dup := s.index[k]; dup {
			continue
		}
		s.index[k] = len(s.entries)
		s.entries = append(s.entries, e)
		if e.Seq >= s.nextSeq {
			s.nextSeq = e.Seq + 1
		}
	}

	if len(s.entries) > 0 {
		logger.Info("loaded persisted backup", "records", len(s.entries))
	}
	return s, nil
}

// Session returns the session identifier new records are tagged with.
func (s *Store) Session() string {
	return s.session
}

// SnapshotIfAbsent records the current value of (category, key) unless a record
// already exists. fetch is only called when no record exists. A fetch error is
// logged and the key is left unsnapshotted; it is never returned.
func (s *Store) SnapshotIfAbsent(category types.Category, key string, fetch Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{category: category, key: key}
	if _, ok := s.index[k]; ok {
		return
	}

	value, err := fetch()
	if err != nil {
		logger.Warn("snapshot failed", "category", category, "key", key, "error", err)
		s.log.Logf("Warning: could not back up %s/%s: %v", category, key, err)
		return
	}

	entry := Entry{
		Seq:     s.nextSeq,
		Session: s.session,
		Record: types.TweakRecord{
			Category:  category,
			Key:       key,
			Prior:     value.Data,
			Absent:    value.Absent,
			AppliedAt: s.now(),
		},
	}
	s.nextSeq++
	s.index[k] = len(s.entries)
	s.entries = append(s.entries, entry)

	logger.Debug("snapshot recorded", "category", category, "key", key, "absent", value.Absent)

	if s.journal != nil {
		if err := s.journal.Put(entry); err != nil {
			logger.Error("journal write failed", "category", category, "key", key, "error", err)
		}
	}
}

// Record returns the record for (category, key), if one exists.
func (s *Store) Record(category types.Category, key string) (types.TweakRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[recordKey{category: category, key: key}]
	if !ok {
		return types.TweakRecord{}, false
	}
	return s.entries[i].Record, true
}

// Take removes and returns the record for (category, key), if one exists.
func (s *Store) Take(category types.Category, key string) (types.TweakRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{category: category, key: key}
	i, ok := s.index[k]
	if !ok {
		return types.TweakRecord{}, false
	}

	rec := s.entries[i].Record
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.reindex()

	if s.journal != nil {
		if err := s.journal.Delete(category, key); err != nil {
			logger.Error("journal delete failed", "category", category, "key", key, "error", err)
		}
	}
	return rec, true
}

// ConsumeAll removes and returns every record, oldest first.
// After it returns, Record reports absent for every key.
func (s *Store) ConsumeAll() []types.TweakRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]types.TweakRecord, len(s.entries))
	for i, e := range s.entries {
		records[i] = e.Record
	}

	s.entries = nil
	s.index = make(map[recordKey]int)

	if s.journal != nil {
		if err := s.journal.Clear(); err != nil {
			logger.Error("journal clear failed", "error", err)
		}
	}
	return records
}

// Records returns a copy of every record, oldest first, without consuming them.
func (s *Store) Records() []types.TweakRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]types.TweakRecord, len(s.entries))
	for i, e := range s.entries {
		records[i] = e.Record
	}
	return records
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// reindex rebuilds the lookup index. Must be called with s.mu held.
func (s *Store) reindex() {
	s.index = make(map[recordKey]int, len(s.entries))
	for i, e := range s.entries {
		s.index[recordKey{category: e.Record.Category, key: e.Record.Key}] = i
	}
}
