package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
)

// ErrNoConfigFile is returned by Watch when there is no file to watch.
var ErrNoConfigFile = errors.New("no config file in use")

// explicitFile replaces the search path when set (the --config flag).
var explicitFile string

// SetFile makes Load and Watch read path instead of searching the config
// directories. An empty path restores the search.
func SetFile(path string) {
	explicitFile = path
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// DaemonConfig configures the gametuned agent.
type DaemonConfig struct {
	SocketPath string `mapstructure:"socket_path"`
	PIDPath    string `mapstructure:"pid_path"`
}

// BackupConfig configures persistence of recorded prior values.
type BackupConfig struct {
	JournalEnabled bool   `mapstructure:"journal_enabled"`
	JournalPath    string `mapstructure:"journal_path"`
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// DNSConfig configures DNS providers.
type DNSConfig struct {
	DefaultProvider string                        `mapstructure:"default_provider"`
	Providers       map[string]tables.DNSProvider `mapstructure:"providers"`
}

// Config represents the application configuration.
type Config struct {
	Backup  BackupConfig  `mapstructure:"backup"`
	History HistoryConfig `mapstructure:"history"`
	DNS     DNSConfig     `mapstructure:"dns"`
	Power   struct {
		TemplateGUID string `mapstructure:"template_guid"`
	} `mapstructure:"power"`
	Services struct {
		Xbox      []string `mapstructure:"xbox"`
		Telemetry []string `mapstructure:"telemetry"`
	} `mapstructure:"services"`
	Logging LoggingConfig `mapstructure:"logging"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`

	// File is the config file that was read, empty when defaults are in use.
	File string `mapstructure:"-"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/gametune/config.yaml
//   - $HOME/.config/gametune/config.yaml
//
// Environment variables are prefixed with GAMETUNE_ (e.g., GAMETUNE_DNS_DEFAULT_PROVIDER).
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration and calls onChange every time the config
// file changes on disk. It returns ErrNoConfigFile when defaults are in use.
func Watch(onChange func(*Config, error)) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, ErrNoConfigFile
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if explicitFile != "" {
		path, err := ExpandPath(explicitFile)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	}

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "gametune"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "gametune"))

	v.SetEnvPrefix("GAMETUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backup.journal_enabled", true)
	v.SetDefault("backup.journal_path", "") // Empty means use DefaultJournalPath
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means use DefaultHistoryDir
	v.SetDefault("history.retention_days", DefaultRetentionDays)
	v.SetDefault("dns.default_provider", DefaultDNSProvider)
	v.SetDefault("power.template_guid", "")
	v.SetDefault("services.xbox", []string{})
	v.SetDefault("services.telemetry", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "5MB")
	v.SetDefault("logging.rotation.max_age", 14)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", false)
	v.SetDefault("logging.components", map[string]string{
		"engine":  "info",
		"network": "info",
		"backup":  "info",
		"daemon":  "info",
	})

	v.SetDefault("daemon.socket_path", "")
	v.SetDefault("daemon.pid_path", "")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for _, p := range []*string{&cfg.Backup.JournalPath, &cfg.History.Path, &cfg.Logging.Path, &cfg.Daemon.SocketPath, &cfg.Daemon.PIDPath} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

// TableOverrides returns the user's replacements for version table entries.
func (c *Config) TableOverrides() tables.Overrides {
	return tables.Overrides{
		DNSProviders: c.DNS.Providers,
		PlanTemplate: c.Power.TemplateGUID,
		Xbox:         c.Services.Xbox,
		Telemetry:    c.Services.Telemetry,
	}
}

// JournalPath returns the configured journal directory or the default.
func (c *Config) JournalPath() string {
	if c.Backup.JournalPath != "" {
		return c.Backup.JournalPath
	}
	return DefaultJournalPath()
}

// HistoryDir returns the configured history directory or the default.
func (c *Config) HistoryDir() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryDir()
}

// SocketPath returns the configured agent socket or the default.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return DefaultSocketPath()
}

// PIDPath returns the configured agent PID file or the default.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	return DefaultPIDPath()
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() (logging.Config, error) {
	rotation := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		size, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", c.Logging.Rotation.MaxSize, err)
		}
		rotation.MaxSize = int64(size)
	}
	rotation.MaxAge = c.Logging.Rotation.MaxAge
	rotation.MaxBackups = c.Logging.Rotation.MaxBackups
	rotation.Daily = c.Logging.Rotation.Daily

	path := c.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
	}

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       path,
		Rotation:   rotation,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "gametune"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "gametune"), nil
}

// ConfigPath returns the path of config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/gametune/ for the journal, history, socket and pid files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "gametune")
}

// DefaultSocketPath returns the default agent socket path.
func DefaultSocketPath() string {
	return filepath.Join(DataDir(), "gametune.sock")
}

// DefaultPIDPath returns the default agent PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "gametune.pid")
}

// DefaultJournalPath returns the default backup journal directory.
func DefaultJournalPath() string {
	return filepath.Join(DataDir(), "journal")
}

// DefaultHistoryDir returns the default run history directory.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}
