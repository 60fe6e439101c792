package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/gametune/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage gametune configuration settings.

Configuration is loaded from:
  1. --config, when given
  2. $XDG_CONFIG_HOME/gametune/config.yaml (if set)
  3. ~/.config/gametune/config.yaml

Environment variables override config file settings using the GAMETUNE_ prefix:
  GAMETUNE_DNS_DEFAULT_PROVIDER=quad9
  GAMETUNE_BACKUP_JOURNAL_ENABLED=false
  GAMETUNE_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. notepad on Windows, vi elsewhere

If the config file doesn't exist, a default one will be created first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if cfg.File != "" {
		fmt.Fprintf(stdout, "Config file: %s\n\n", cfg.File)
	} else {
		fmt.Fprintf(stdout, "Config file: (using defaults, no file found)\n\n")
	}

	fmt.Fprintln(stdout, "Current Configuration:")
	fmt.Fprintln(stdout, "----------------------")
	fmt.Fprintf(stdout, "backup.journal_enabled:  %t\n", cfg.Backup.JournalEnabled)
	fmt.Fprintf(stdout, "backup.journal_path:     %s\n", cfg.JournalPath())
	fmt.Fprintf(stdout, "history.enabled:         %t\n", cfg.History.Enabled)
	fmt.Fprintf(stdout, "history.path:            %s\n", cfg.HistoryDir())
	fmt.Fprintf(stdout, "history.retention_days:  %d\n", cfg.History.RetentionDays)
	fmt.Fprintf(stdout, "dns.default_provider:    %s\n", cfg.DNS.DefaultProvider)

	names := make([]string, 0, len(cfg.DNS.Providers))
	for name := range cfg.DNS.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.DNS.Providers[name]
		fmt.Fprintf(stdout, "dns.providers.%-10s %s, %s\n", name+":", p.Primary, p.Secondary)
	}

	fmt.Fprintf(stdout, "power.template_guid:     %s\n", orDefault(cfg.Power.TemplateGUID))
	fmt.Fprintf(stdout, "services.xbox:           %s\n", orDefault(strings.Join(cfg.Services.Xbox, ", ")))
	fmt.Fprintf(stdout, "services.telemetry:      %s\n", orDefault(strings.Join(cfg.Services.Telemetry, ", ")))
	fmt.Fprintf(stdout, "logging.level:           %s\n", cfg.Logging.Level)
	fmt.Fprintf(stdout, "daemon.socket_path:      %s\n", cfg.SocketPath())
	fmt.Fprintf(stdout, "daemon.pid_path:         %s\n", cfg.PIDPath())

	fmt.Fprintln(stdout, "\nEnvironment Overrides:")
	fmt.Fprintln(stdout, "----------------------")
	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "GAMETUNE_") {
			overrides = append(overrides, kv)
		}
	}
	sort.Strings(overrides)
	if len(overrides) == 0 {
		fmt.Fprintln(stdout, "(none)")
	}
	for _, kv := range overrides {
		fmt.Fprintln(stdout, kv)
	}
	return nil
}

func orDefault(s string) string {
	if s == "" {
		return "(built-in)"
	}
	return s
}

// configFile is the file edit and path act on: the one in use, or the
// default location.
func configFile() (string, error) {
	if cfg != nil && cfg.File != "" {
		return cfg.File, nil
	}
	return config.ConfigPath()
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	if cfg == nil || cfg.File == "" {
		if path, err = config.WriteDefault(); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = defaultEditor()
	}

	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'gametune config edit' to modify it.")
		return nil
	}

	path, err = config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", path)
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		printInfo("(file does not exist, run 'gametune config init' to create it)")
	}
	return nil
}
