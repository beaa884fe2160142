// Command smoosh is the developer front end of the compile pipeline: it
// compiles, checks and disassembles sources, and follows files as they grow.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smooshjs/smoosh-go/internal/config"
)

var (
	verbose    bool
	logLevel   string
	logFormat  string
	configPath string

	// Populated by PersistentPreRunE.
	cfg    *config.File
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "smoosh",
	Short: "Compile scripts to bytecode through the smoosh pipeline",
	Long: `smoosh runs the parse and emit pipeline on source files and reports the
outcome: bytecode and metadata on success, a diagnostic on error, or a note
that the source uses a construct the pipeline does not support yet.

Settings are read from smoosh.yaml, smoosh.yml or smoosh.toml in the current
directory or any parent, or from the file given with --config. Command line
flags override the file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		level, format := cfg.Log.Level, cfg.Log.Format
		if cmd.Flags().Changed("log-level") || level == "" {
			level = logLevel
		}
		if cmd.Flags().Changed("log-format") || format == "" {
			format = logFormat
		}
		if verbose {
			level = "debug"
		}
		logger, err = newLogger(cmd.ErrOrStderr(), level, format)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Configuration file (default: search for smoosh.yaml/.toml)")
}

// loadConfig loads path, or the nearest config file when path is empty. A
// missing config yields the zero File with version 1.
func loadConfig(path string) (*config.File, error) {
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return &config.File{Version: config.SupportedVersion}, nil
		}
		path = found
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
