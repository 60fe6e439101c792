package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the maximum size in bytes before rotation. Zero uses 5MB.
	MaxSize int64

	// MaxAge is the number of days to keep rotated files. Zero keeps them forever.
	MaxAge int

	// MaxBackups is the number of rotated files to keep. Zero keeps all of them.
	MaxBackups int

	// Daily rotates the log at the first write after midnight.
	Daily bool
}

// DefaultRotationConfig returns the default rotation policy.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    5 * 1024 * 1024,
		MaxAge:     14,
		MaxBackups: 5,
		Daily:      false,
	}
}

// RotatingWriter is an io.WriteCloser that rotates the underlying file by size
// or by day. It is safe for concurrent use, and each write holds an OS file lock
// because the CLI and the agent may log to the same file.
type RotatingWriter struct {
	path   string
	cfg    RotationConfig
	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
}

// NewRotatingWriter opens (or creates) path for appending.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p, rotating first if p would overflow the file or the day changed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.due(int64(len(p)), time.Now()) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := lockFile(w.file); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlockFile(w.file)

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil

	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	w.opened = info.ModTime()
	return nil
}

func (w *RotatingWriter) due(incoming int64, now time.Time) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if !w.cfg.Daily {
		return false
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := w.opened.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	ext := filepath.Ext(w.path)
	stamped := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(w.path, ext), time.Now().Format("20060102-150405.000"), ext)
	if err := os.Rename(w.path, stamped); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}

	if err := w.open(); err != nil {
		return err
	}
	w.opened = time.Now()
	w.prune()
	return nil
}

// prune removes rotated files beyond MaxBackups or older than MaxAge.
// Errors are ignored; a stale file is harmless.
func (w *RotatingWriter) prune() {
	files := w.rotatedFiles()

	sort.Slice(files, func(i, j int) bool {
		return files[i].mod.After(files[j].mod)
	})

	cutoff := time.Time{}
	if w.cfg.MaxAge > 0 {
		cutoff = time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	}

	for i, f := range files {
		overCount := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := !cutoff.IsZero() && f.mod.Before(cutoff)
		if overCount || tooOld {
			_ = os.Remove(f.path)
		}
	}
}

type rotatedFile struct {
	path string
	mod  time.Time
}

// rotatedFiles lists files named like gametune.<stamp>.log next to the live file.
func (w *RotatingWriter) rotatedFiles() []rotatedFile {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []rotatedFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == base {
			continue
		}
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{path: filepath.Join(dir, name), mod: info.ModTime()})
	}
	return files
}
