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

	"github.com/smooshjs/smoosh-go/internal/artifact"
	"github.com/smooshjs/smoosh-go/internal/cache"
	"github.com/smooshjs/smoosh-go/internal/parser"
	"github.com/smooshjs/smoosh-go/internal/safefile"
	"github.com/smooshjs/smoosh-go/internal/scriptfinder"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// MaxSourceSize bounds a source file read by the CLI (64MB).
const MaxSourceSize = 64 * 1024 * 1024

// ErrCompileFailed is returned when at least one file did not compile.
var ErrCompileFailed = errors.New("compilation failed")

var (
	compileModule       bool
	compileNoScriptRval bool
	compileFormat       string
	compileOutput       string
	compileCache        string
	compilePlugins      []string
	compileTimeout      time.Duration
	compileDumpAST      bool
)

var compileCmd = &cobra.Command{
	Use:   "compile FILE...",
	Short: "Compile source files and report the outcome",
	Long: `Compile each file and print a summary of the outcome.

The goal is taken from the extension (.mjs is a module) unless --module is
given. Exit status is 1 if any file fails to compile.

Examples:
  # Summarize a script
  smoosh compile main.js

  # Write a bytecode artifact
  smoosh compile -o main.smoo main.js

  # Reuse results across runs
  smoosh compile --cache .smoosh/cache.db src/*.js

  # Try a Wasm parser plugin first
  smoosh compile --plugin es2022.wasm main.js

  # Print the syntax tree as JSON instead of compiling
  smoosh compile --dump-ast main.js`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().BoolVarP(&compileModule, "module", "m", false,
		"Parse as a module regardless of extension")
	compileCmd.Flags().BoolVar(&compileNoScriptRval, "no-script-rval", false,
		"Discard expression statement values")
	compileCmd.Flags().StringVarP(&compileFormat, "format", "f", "pretty",
		"Output format: pretty, jsonl")
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "",
		"Write a CBOR artifact (single input only)")
	compileCmd.Flags().StringVar(&compileCache, "cache", "",
		"SQLite artifact cache path")
	compileCmd.Flags().StringSliceVar(&compilePlugins, "plugin", nil,
		"Wasm parser plugin paths, tried in order before the built-in parser")
	compileCmd.Flags().DurationVar(&compileTimeout, "plugin-timeout", 0,
		"Per-call plugin timeout (default from config or 500ms)")
	compileCmd.Flags().BoolVar(&compileDumpAST, "dump-ast", false,
		"Print the syntax tree as JSON instead of compiling")
	rootCmd.AddCommand(compileCmd)
}

// compileJob holds everything runCompileFiles needs besides the inputs.
type compileJob struct {
	compiler   *smoosh.Compiler
	frontendID string
	cache      *cache.Cache
	opts       smoosh.CompileOptions
	forceGoal  bool
	format     string
	output     string
	logger     *slog.Logger
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !validFormats[compileFormat] {
		return fmt.Errorf("unknown format: %s", compileFormat)
	}
	if compileDumpAST {
		return dumpAST(cmd.OutOrStdout(), args, compileModule)
	}

	plugins, timeout, err := pluginSettings(compilePlugins, compileTimeout)
	if err != nil {
		return err
	}
	compiler, id, cleanup, err := buildCompiler(ctx, plugins, timeout, logger)
	defer cleanup()
	if err != nil {
		return err
	}

	job := compileJob{
		compiler:   compiler,
		frontendID: id,
		opts:       cfg.CompileOptions(),
		forceGoal:  compileModule || cfg.Compile.Goal != "",
		format:     compileFormat,
		output:     compileOutput,
		logger:     logger,
	}
	if compileModule {
		job.opts.Goal = ast.GoalModule
	}
	if compileNoScriptRval {
		job.opts.NoScriptRval = true
	}

	cachePath := compileCache
	if cachePath == "" {
		cachePath = cfg.Cache.Path
	}
	if cachePath != "" {
		c, err := cache.Open(cachePath)
		if err != nil {
			return err
		}
		defer c.Close()
		job.cache = c
	}

	return job.run(ctx, cmd.OutOrStdout(), args)
}

func (j *compileJob) run(ctx context.Context, out io.Writer, paths []string) error {
	scripts, err := scriptfinder.Find(paths...)
	if err != nil {
		return err
	}
	if j.output != "" && len(scripts) != 1 {
		return fmt.Errorf("--output needs exactly one input, got %d", len(scripts))
	}

	failed := 0
	for _, s := range scripts {
		opts := j.opts
		if !j.forceGoal {
			opts.Goal = s.Goal
		}
		summary, err := j.compileFile(ctx, s.Path, opts)
		if err != nil {
			return err
		}
		if summary.Status != smoosh.StatusSuccess.String() {
			failed++
		}
		if err := OutputSummary(j.format, summary, out); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s)", ErrCompileFailed, failed, len(scripts))
	}
	return nil
}

func (j *compileJob) compileFile(ctx context.Context, path string, opts smoosh.CompileOptions) (Summary, error) {
	src, err := safefile.ReadRegular(path, MaxSourceSize)
	if err != nil {
		return Summary{}, fmt.Errorf("reading %s: %w", path, err)
	}

	key := ""
	if j.cache != nil {
		key = cache.Key(src, opts, j.frontendID)
		a, err := j.cache.Get(ctx, key)
		if err == nil {
			if verr := a.Verify(); verr != nil {
				j.logger.Warn("discarding cached artifact", "path", path, "key", key, "error", verr)
				err = cache.ErrMiss
			}
		}
		switch {
		case err == nil:
			j.logger.Debug("cache hit", "path", path, "key", key)
			if err := j.writeArtifact(a); err != nil {
				return Summary{}, err
			}
			s := summarizeArtifact(path, a)
			s.Cached = true
			return s, nil
		case !errors.Is(err, cache.ErrMiss):
			j.logger.Warn("cache lookup failed", "path", path, "error", err)
		}
	}

	var summary Summary
	err = j.compiler.Compile(ctx, src, opts, func(o *smoosh.Outcome) error {
		summary = Summarize(path, o)
		if o.Status != smoosh.StatusSuccess {
			return nil
		}
		if j.cache == nil && j.output == "" {
			return nil
		}
		a, err := artifact.FromOutcome(o, src)
		if err != nil {
			return err
		}
		if j.cache != nil {
			if err := j.cache.Put(ctx, key, a); err != nil {
				j.logger.Warn("cache store failed", "path", path, "error", err)
			}
		}
		return j.writeArtifact(a)
	})
	return summary, err
}

func (j *compileJob) writeArtifact(a *artifact.Artifact) error {
	if j.output == "" {
		return nil
	}
	data, err := artifact.Marshal(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(j.output, data, 0644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

func summarizeArtifact(source string, a *artifact.Artifact) Summary {
	return Summary{
		Source:        source,
		Status:        smoosh.StatusSuccess.String(),
		BytecodeLen:   len(a.Bytecode),
		Atoms:         len(a.Strings),
		MaxStackDepth: a.MaximumStackDepth,
		NumICEntries:  a.NumICEntries,
		MainOffset:    a.MainOffset,
		Flags:         FlagNames(a.Flags),
	}
}

// dumpAST prints the reference parser's tree for each file as one JSON line.
func dumpAST(out io.Writer, paths []string, module bool) error {
	scripts, err := scriptfinder.Find(paths...)
	if err != nil {
		return err
	}
	for _, s := range scripts {
		src, err := safefile.ReadRegular(s.Path, MaxSourceSize)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.Path, err)
		}
		goal := s.Goal
		if module {
			goal = ast.GoalModule
		}
		prog, err := parser.Parse(string(src), goal)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Path, err)
		}
		data, err := ast.Encode(prog)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
	}
	return nil
}
