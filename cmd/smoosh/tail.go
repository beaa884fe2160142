package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smooshjs/smoosh-go/internal/scriptfinder"
	"github.com/smooshjs/smoosh-go/internal/tailer"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// DefaultRotateInterval is how often a followed directory is checked for a
// newer script.
const DefaultRotateInterval = 2 * time.Second

var (
	tailFormat    string
	tailFromStart bool
	tailPoll      bool
	tailModule    bool
	tailPlugins   []string
	tailTimeout   time.Duration
	tailRotate    time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail FILE|DIR",
	Short: "Compile each line of a growing file",
	Long: `Follow FILE and compile every appended line as a separate script,
printing one summary per line. Given a directory, follow the most recently
modified script in it and switch when a newer one appears.

Output is JSON Lines by default, which pipes well into jq.

Examples:
  # Compile lines as they are appended
  smoosh tail snippets.js

  # Start from the beginning of the file, human readable
  smoosh tail --from-start --format pretty snippets.js

  # Follow the newest script in a directory
  smoosh tail ./scratch

  # Only failures
  smoosh tail snippets.js | jq 'select(.status != "success")'`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	tailCmd.Flags().BoolVar(&tailFromStart, "from-start", false,
		"Compile existing lines before following")
	tailCmd.Flags().BoolVar(&tailPoll, "poll", false,
		"Poll for changes instead of using filesystem notifications")
	tailCmd.Flags().BoolVarP(&tailModule, "module", "m", false,
		"Parse lines as modules")
	tailCmd.Flags().StringSliceVar(&tailPlugins, "plugin", nil,
		"Wasm parser plugin paths, tried in order before the built-in parser")
	tailCmd.Flags().DurationVar(&tailTimeout, "plugin-timeout", 0,
		"Per-call plugin timeout")
	tailCmd.Flags().DurationVar(&tailRotate, "rotate-interval", DefaultRotateInterval,
		"How often to look for a newer script when following a directory")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !validFormats[tailFormat] {
		return fmt.Errorf("unknown format: %s", tailFormat)
	}
	if tailRotate <= 0 {
		return fmt.Errorf("invalid --rotate-interval: %s", tailRotate)
	}

	plugins, timeout, err := pluginSettings(tailPlugins, tailTimeout)
	if err != nil {
		return err
	}
	compiler, _, cleanup, err := buildCompiler(ctx, plugins, timeout, logger)
	defer cleanup()
	if err != nil {
		return err
	}

	s := &tailSession{
		compiler: compiler,
		opts:     cfg.CompileOptions(),
		format:   tailFormat,
		out:      cmd.OutOrStdout(),
		logger:   logger,
		cfg:      tailer.Config{FromStart: tailFromStart, ReOpen: true, Poll: tailPoll},
		rotate:   tailRotate,
	}
	if tailModule {
		s.opts.Goal = ast.GoalModule
	}
	return s.run(ctx, args[0])
}

// tailSession compiles the lines of one followed target.
type tailSession struct {
	compiler *smoosh.Compiler
	opts     smoosh.CompileOptions
	format   string
	out      io.Writer
	logger   *slog.Logger
	cfg      tailer.Config
	rotate   time.Duration
}

func (s *tailSession) run(ctx context.Context, target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		_, err := s.follow(ctx, target, "")
		return err
	}

	path, err := scriptfinder.Latest(target)
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	for path != "" {
		s.logger.Info("following script", "path", path)
		path, err = s.follow(ctx, path, target)
		if err != nil {
			return err
		}
		// A newer script is read in full.
		s.cfg.FromStart = true
	}
	return nil
}

// follow compiles lines of path until ctx ends or, when dir is set, a newer
// script appears in dir. It returns that script's path, or "" when done.
func (s *tailSession) follow(ctx context.Context, path, dir string) (string, error) {
	tl, err := tailer.New(ctx, path, s.cfg)
	if err != nil {
		return "", err
	}
	defer tl.Stop()

	var rotate <-chan time.Time
	if dir != "" {
		ticker := time.NewTicker(s.rotate)
		defer ticker.Stop()
		rotate = ticker.C
	}

	n := uint32(0)
	for {
		select {
		case line, ok := <-tl.Lines():
			if !ok {
				return "", nil
			}
			n++
			if err := s.compileLine(ctx, path, n, line); err != nil {
				return "", err
			}

		case err, ok := <-tl.Errors():
			if !ok {
				return "", nil
			}
			s.logger.Warn("tail error", "path", path, "error", err)

		case <-rotate:
			latest, err := scriptfinder.Latest(dir)
			if err != nil {
				if !errors.Is(err, scriptfinder.ErrNoScripts) {
					s.logger.Warn("scan failed", "dir", dir, "error", err)
				}
				continue
			}
			if latest != path {
				return latest, nil
			}

		case <-ctx.Done():
			return "", nil
		}
	}
}

func (s *tailSession) compileLine(ctx context.Context, path string, n uint32, line string) error {
	if line == "" {
		return nil
	}
	opts := s.opts
	opts.Lineno = n
	if s.opts.Goal == ast.GoalScript {
		if goal, ok := scriptfinder.GoalFor(path); ok {
			opts.Goal = goal
		}
	}

	o := s.compiler.Run(ctx, []byte(line), opts)
	summary := Summarize(fmt.Sprintf("%s:%d", path, n), &o)
	smoosh.Release(o)
	if err := OutputSummary(s.format, summary, s.out); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}
