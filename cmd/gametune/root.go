package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "gametune",
		Short: "Tune Windows for gaming",
		Long: `Gametune applies reversible gaming optimizations to Windows: network
adapter and TCP tuning, DNS, SysMain, Xbox and telemetry services, the
Ultimate Performance power plan, visual effects, GPU scheduling and the
multimedia scheduler.

Every setting is recorded before it is first changed, and 'gametune restore'
puts all of them back. Run from an elevated prompt.

Examples:
  gametune all                 # Apply every optimization
  gametune run optimize-tcp    # Apply one optimization
  gametune dns set quad9       # Point the active adapter at Quad9
  gametune dns bench           # Compare resolver latency
  gametune backup show         # List recorded prior values
  gametune restore             # Undo everything
  gametune history             # View past runs`,
		SilenceUsage:       true,
		PersistentPreRunE:  initialize,
		PersistentPostRunE: shutdown,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/gametune/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "pretty", "output format (pretty, plain, json, yaml, template)")
	rootCmd.PersistentFlags().StringVar(&templateStr, "template", "", "Go template for -o template")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-agent", false, "bypass the gametuned agent, act on this machine directly")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_agent", rootCmd.PersistentFlags().Lookup("no-agent"))
}

// initialize loads the configuration and starts file logging. It is the
// PersistentPreRunE hook of every command.
func initialize(_ *cobra.Command, _ []string) error {
	config.SetFile(cfgFile)

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg = loaded

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return err
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	printVerbose("config file: %s", cfg.File)
	return nil
}

func shutdown(_ *cobra.Command, _ []string) error {
	return logging.Close()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
