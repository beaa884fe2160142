package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smooshjs/smoosh-go/internal/safefile"
	"github.com/smooshjs/smoosh-go/internal/scriptfinder"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// ErrCheckFailed is returned when at least one file does not parse.
var ErrCheckFailed = errors.New("syntax check failed")

var (
	checkModule  bool
	checkPlugins []string
	checkTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check PATH...",
	Short: "Check that sources parse",
	Long: `Parse every script under the given files and directories without
compiling them. Directories are searched recursively; node_modules and hidden
directories are skipped.

Examples:
  smoosh check src/
  smoosh check --module lib/*.js`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		plugins, timeout, err := pluginSettings(checkPlugins, checkTimeout)
		if err != nil {
			return err
		}
		compiler, _, cleanup, err := buildCompiler(ctx, plugins, timeout, logger)
		defer cleanup()
		if err != nil {
			return err
		}
		return runCheck(ctx, cmd.OutOrStdout(), compiler, args, checkModule)
	},
}

func init() {
	checkCmd.Flags().BoolVarP(&checkModule, "module", "m", false,
		"Parse every file as a module")
	checkCmd.Flags().StringSliceVar(&checkPlugins, "plugin", nil,
		"Wasm parser plugin paths, tried in order before the built-in parser")
	checkCmd.Flags().DurationVar(&checkTimeout, "plugin-timeout", 0,
		"Per-call plugin timeout")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, out io.Writer, c *smoosh.Compiler, paths []string, module bool) error {
	scripts, err := scriptfinder.Find(paths...)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range scripts {
		src, err := safefile.ReadRegular(s.Path, MaxSourceSize)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.Path, err)
		}
		goal := s.Goal
		if module {
			goal = ast.GoalModule
		}

		var ok bool
		if goal == ast.GoalModule {
			ok = c.ProbeParseModule(ctx, src)
		} else {
			ok = c.ProbeParseScript(ctx, src)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result := "ok"
		if !ok {
			result = "FAIL"
			failed++
		}
		if _, err := fmt.Fprintf(out, "%s %s (%s)\n", result, s.Path, goal); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s)", ErrCheckFailed, failed, len(scripts))
	}
	return nil
}
