package daemon

import (
	"os"
	"path/filepath"

	"github.com/jamesainslie/gametune/pkg/gametune/logging"
)

// RecoverFromStaleDaemon checks for and cleans up the leftovers of an agent
// that died without shutting down: its PID file, its socket, and the lock
// file of the backup journal it had open.
// Returns nil if cleanup succeeded or wasn't needed.
// Returns ErrDaemonAlreadyRunning if an agent is actually running.
func RecoverFromStaleDaemon(pidPath, socketPath, journalDir string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		// No PID file or invalid PID means nothing to recover
		return nil //nolint:nilerr // missing/invalid PID file is not an error condition
	}

	if IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	logging.Get("daemon").Warn("cleaning up stale agent files", "stale_pid", pid)

	// Files may not exist
	_ = os.Remove(pidPath)
	_ = os.Remove(socketPath)
	if journalDir != "" {
		_ = os.Remove(filepath.Join(journalDir, "LOCK"))
	}
	return nil
}
