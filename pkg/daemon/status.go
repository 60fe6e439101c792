package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Startup states written to the status file.
const (
	StateReady = "ready"
	StateError = "error"
)

// StatusFile tells the process that launched the agent how startup went.
// The launcher polls it next to the socket.
type StatusFile struct {
	State   string    `json:"status"`
	PID     int       `json:"pid,omitempty"`
	Table   string    `json:"table,omitempty"`
	Session string    `json:"session,omitempty"`
	Error   string    `json:"error,omitempty"`
	Written time.Time `json:"written"`
}

// Ready reports whether the agent is serving.
func (s *StatusFile) Ready() bool {
	return s.State == StateReady
}

// WriteStatusReady records that the agent is serving the given session.
func WriteStatusReady(path, table, session string) error {
	return writeStatus(path, &StatusFile{State: StateReady, PID: os.Getpid(), Table: table, Session: session})
}

// WriteStatusError records why the agent failed to start.
func WriteStatusError(path string, err error) error {
	return writeStatus(path, &StatusFile{State: StateError, Error: err.Error()})
}

// writeStatus replaces the file atomically so a polling reader never sees
// half of it.
func writeStatus(path string, status *StatusFile) error {
	status.Written = time.Now().UTC()
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ReadStatus reads a status file.
func ReadStatus(path string) (*StatusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var status StatusFile
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &status, nil
}

// RemoveStatus removes the status file. A missing file is not an error.
func RemoveStatus(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StatusPath returns the status file that belongs to a socket path:
// gametune.sock becomes gametune.status.
func StatusPath(socketPath string) string {
	ext := filepath.Ext(socketPath)
	return socketPath[:len(socketPath)-len(ext)] + ".status"
}
