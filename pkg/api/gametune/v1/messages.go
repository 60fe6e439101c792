package gametunev1

import (
	"time"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// RunRequest asks for one operation, or the whole bulk sequence when All is set.
type RunRequest struct {
	Operation string                 `json:"operation,omitempty"`
	All       bool                   `json:"all,omitempty"`
	Adapter   *types.AdapterIdentity `json:"adapter,omitempty"`
	Provider  string                 `json:"provider,omitempty"`

	// Marker, when set, is echoed to watchers as the last event of this call.
	Marker string `json:"marker,omitempty"`
}

// RunResponse carries the outcome. A single operation yields a one-step report.
type RunResponse struct {
	Report types.Report `json:"report"`
}

// RestoreRequest asks for every recorded prior value to be put back.
type RestoreRequest struct {
	// Marker, when set, is echoed to watchers as the last event of this call.
	Marker string `json:"marker,omitempty"`
}

// RestoreResponse carries the restore report. Error aggregates the failed
// records; they stay recorded for a later retry.
type RestoreResponse struct {
	Report types.Report `json:"report"`
	Error  string       `json:"error,omitempty"`
}

// BackupRequest asks for the outstanding records.
type BackupRequest struct{}

// BackupResponse lists the outstanding records, oldest first.
type BackupResponse struct {
	Records []types.TweakRecord `json:"records"`
}

// AdaptersRequest asks for the network adapters.
type AdaptersRequest struct{}

// AdaptersResponse lists adapters; Active is the detected one, if any.
type AdaptersResponse struct {
	Adapters []types.AdapterIdentity `json:"adapters"`
	Active   *types.AdapterIdentity  `json:"active,omitempty"`
}

// StatusRequest asks for agent health.
type StatusRequest struct{}

// StatusResponse describes the agent and its session.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	MemoryBytes   uint64 `json:"memory_bytes"`
	Session       string `json:"session"`
	Table         string `json:"table"`
	Build         int    `json:"build"`
	Records       int    `json:"records"`
	Subscribers   int    `json:"subscribers"`
	ConfigFile    string `json:"config_file,omitempty"`
}

// ShutdownRequest asks the agent to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown.
type ShutdownResponse struct {
	Success bool `json:"success"`
}

// WatchRequest subscribes to progress lines.
type WatchRequest struct{}

// WatchReady is the marker of the first event on a Watch stream. It is sent
// once the subscription is live, so calls made after it are fully observed.
const WatchReady = "watch-ready"

// Event is one progress line from the engine, or the end-of-call marker of
// a request that set one.
type Event struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	Marker  string    `json:"marker,omitempty"`
}

// LogsRequest subscribes to the agent's log.
type LogsRequest struct {
	// Backlog replays this many recent entries first.
	Backlog int `json:"backlog,omitempty"`

	// Follow keeps the stream open for new entries.
	Follow bool `json:"follow,omitempty"`
}

// LogEntry is one agent log line.
type LogEntry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}
