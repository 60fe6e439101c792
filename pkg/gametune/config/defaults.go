// Package config provides configuration management for gametune.
package config

// Default configuration values.
const (
	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 90

	// DefaultDNSProvider is used by set-dns when no provider is named.
	DefaultDNSProvider = "cloudflare"
)

const defaultConfig = `# gametune configuration

# Recorded prior values, kept so "gametune restore" works across reboots
backup:
  journal_enabled: true
  # Empty means use default: $XDG_DATA_HOME/gametune/journal
  journal_path: ""

# History of bulk runs and restores
history:
  enabled: true
  path: ""
  retention_days: 90

dns:
  default_provider: cloudflare
  # Extra or replacement providers
  # providers:
  #   adguard:
  #     primary: 94.140.14.14
  #     secondary: 94.140.15.15

power:
  # Template GUID for the Ultimate Performance plan (empty means built-in)
  template_guid: ""

# Replace the built-in service lists
services:
  xbox: []
  telemetry: []

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/gametune/gametune.log)
  path: ""
  rotation:
    max_size: 5MB
    max_age: 14       # days
    max_backups: 5
    daily: false
  # Per-component log levels
  components:
    engine: info
    network: info
    backup: info
    daemon: info

# Agent configuration
daemon:
  # Empty means use default: $XDG_DATA_HOME/gametune/gametune.sock
  socket_path: ""
  pid_path: ""
`
