// Package history keeps a record of bulk runs and restores as one JSON file
// per operation, so past sessions can be listed and inspected.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// Operation is the kind of run an entry describes.
type Operation string

const (
	// OpRun is a bulk optimization run.
	OpRun Operation = "run"
	// OpRestore is a restore of recorded prior values.
	OpRestore Operation = "restore"
	// OpSingle is one operation invoked on its own.
	OpSingle Operation = "single"
)

// Entry is one recorded operation.
type Entry struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Operation Operation    `json:"operation"`
	Session   string       `json:"session"`
	Steps     []types.Step `json:"steps"`
	Summary   Summary      `json:"summary"`
}

// Summary condenses the steps of an entry.
type Summary struct {
	Steps           int           `json:"steps"`
	Failed          int           `json:"failed"`
	Skipped         int           `json:"skipped"`
	RestartRequired bool          `json:"restart_required"`
	Duration        time.Duration `json:"duration"`
}

// History stores entries in a directory.
type History struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a History in dir. The directory is created on first write.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir, now: time.Now}, nil
}

// Dir returns the history directory.
func (h *History) Dir() string {
	return h.dir
}

// Record persists a report and returns the created entry.
func (h *History) Record(op Operation, session string, report types.Report) (*Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now().UTC()
	entry := &Entry{
		ID:        generateID(op, now),
		Timestamp: now,
		Operation: op,
		Session:   session,
		Steps:     report.Steps,
		Summary: Summary{
			Steps:           len(report.Steps),
			Failed:          report.Failed(),
			Skipped:         report.Skipped(),
			RestartRequired: report.RestartRequired(),
			Duration:        report.Duration,
		},
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := h.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}
	return entry, nil
}

func (h *History) writeEntry(entry *Entry) error {
	path := filepath.Join(h.dir, entry.ID+".json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns entries newest first. A limit of zero or less returns all.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given ID, or a unique ID prefix.
func (h *History) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		switch {
		case entries[i].ID == id:
			return &entries[i], nil
		case strings.HasPrefix(entries[i].ID, id):
			if match != nil {
				return nil, fmt.Errorf("%w: ambiguous entry ID %q", types.ErrInvalidArgument, id)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("history entry %s: %w", id, types.ErrNotFound)
	}
	return match, nil
}

// Cleanup removes entries older than retentionDays and returns how many it removed.
func (h *History) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		info, err := f.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(h.dir, f.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (h *History) readAll() ([]Entry, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.dir, f.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			// Skip files that can't be parsed
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// generateID creates an ID like "run-2026-06-15T10-30-00-1b9d6bcd".
func generateID(op Operation, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s", op, ts.Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
