package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smooshjs/smoosh-go/internal/artifact"
	"github.com/smooshjs/smoosh-go/internal/safefile"
	"github.com/smooshjs/smoosh-go/internal/scriptfinder"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// ArtifactExt marks files written by compile -o.
const ArtifactExt = ".smoo"

var disasmModule bool

var disasmCmd = &cobra.Command{
	Use:   "disasm FILE",
	Short: "Print a bytecode listing",
	Long: `Print the bytecode of FILE one instruction per line.

FILE is either an artifact written by "smoosh compile -o" (.smoo), which is
verified before it is listed, or a source file, which is compiled first with
the built-in frontend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := smoosh.New(smoosh.WithLogger(logger))
		return runDisasm(cmd.Context(), cmd.OutOrStdout(), c, args[0], disasmModule)
	},
}

func init() {
	disasmCmd.Flags().BoolVarP(&disasmModule, "module", "m", false,
		"Parse a source file as a module")
	rootCmd.AddCommand(disasmCmd)
}

func runDisasm(ctx context.Context, out io.Writer, c *smoosh.Compiler, path string, module bool) error {
	a, err := loadArtifact(ctx, c, path, module)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "; %d bytes, %d atoms, depth %d, main at %d\n",
		len(a.Bytecode), len(a.Strings), a.MaximumStackDepth, a.MainOffset); err != nil {
		return err
	}
	return a.Disassemble(out)
}

func loadArtifact(ctx context.Context, c *smoosh.Compiler, path string, module bool) (*artifact.Artifact, error) {
	data, err := safefile.ReadRegular(path, MaxSourceSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if filepath.Ext(path) == ArtifactExt {
		a, err := artifact.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := a.Verify(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return a, nil
	}

	opts := cfg.CompileOptions()
	if goal, ok := scriptfinder.GoalFor(path); ok {
		opts.Goal = goal
	}
	if module {
		opts.Goal = ast.GoalModule
	}

	var a *artifact.Artifact
	err = c.Compile(ctx, data, opts, func(o *smoosh.Outcome) error {
		switch o.Status {
		case smoosh.StatusError:
			return fmt.Errorf("%s: %s", path, o.Message())
		case smoosh.StatusNotImplemented:
			return fmt.Errorf("%s: not implemented", path)
		}
		var err error
		a, err = artifact.FromOutcome(o, data)
		return err
	})
	return a, err
}
