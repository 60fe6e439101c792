package daemon

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrDaemonAlreadyRunning is returned when trying to start an agent that's already running.
var ErrDaemonAlreadyRunning = errors.New("gametuned already running")

// WritePIDFile writes the current process ID to a file.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPIDFile reads a PID from a file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(path string) error {
	return os.Remove(path)
}

// IsDaemonRunning checks if an agent is running based on its PID file.
func IsDaemonRunning(pidPath string) bool {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return false
	}
	return IsProcessRunning(pid)
}

// IsProcessRunning checks if a process with the given PID exists. Signal 0
// is not available on Windows, so the process table is consulted instead.
func IsProcessRunning(pid int) bool {
	if pid <= 0 || pid > 1<<31-1 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}
