package platform

import (
	"fmt"
	"strings"
)

// StartMode is a service start configuration.
type StartMode string

// Start modes.
const (
	StartAuto        StartMode = "auto"
	StartDelayedAuto StartMode = "delayed-auto"
	StartManual      StartMode = "manual"
	StartDisabled    StartMode = "disabled"
)

// ParseStartMode parses a start mode name.
func ParseStartMode(s string) (StartMode, error) {
	switch m := StartMode(strings.ToLower(strings.TrimSpace(s))); m {
	case StartAuto, StartDelayedAuto, StartManual, StartDisabled:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown start mode %q", ErrInvalidArgument, s)
	}
}

// ServiceState is a service run state.
type ServiceState string

// Run states. Transitional states collapse into StatePending.
const (
	StateRunning ServiceState = "running"
	StateStopped ServiceState = "stopped"
	StatePaused  ServiceState = "paused"
	StatePending ServiceState = "pending"
)
