// Package scriptfinder expands command line arguments into the source files
// to compile.
package scriptfinder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// Sentinel errors.
var (
	ErrNoScripts   = errors.New("no script files found")
	ErrNotFound    = errors.New("path not found")
	ErrUnsupported = errors.New("unsupported file type")
)

// Extensions maps recognized source extensions to their default goal.
var Extensions = map[string]ast.Goal{
	".js":  ast.GoalScript,
	".cjs": ast.GoalScript,
	".mjs": ast.GoalModule,
}

// Script is a discovered source file.
type Script struct {
	Path string
	Goal ast.Goal
}

// GoalFor returns the goal implied by the file extension, and false for an
// unrecognized extension.
func GoalFor(path string) (ast.Goal, bool) {
	g, ok := Extensions[strings.ToLower(filepath.Ext(path))]
	return g, ok
}

// Find expands paths: files are taken as given (any extension), directories
// are walked for recognized extensions. Hidden directories and node_modules
// are skipped. The result is sorted by path and free of duplicates.
func Find(paths ...string) ([]Script, error) {
	seen := make(map[string]bool)
	var out []Script
	add := func(path string, goal ast.Goal) {
		clean := filepath.Clean(path)
		if seen[clean] {
			return
		}
		seen[clean] = true
		out = append(out, Script{Path: clean, Goal: goal})
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
			}
			return nil, err
		}
		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("%w: %s", ErrUnsupported, root)
			}
			goal, _ := GoalFor(root)
			add(root, goal)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if goal, ok := GoalFor(path); ok {
				add(path, goal)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoScripts
	}
	slices.SortFunc(out, func(a, b Script) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

func skipDir(name string) bool {
	return name == "node_modules" || (len(name) > 1 && name[0] == '.')
}

// Latest returns the most recently modified recognized script directly in
// dir.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	// Stat once per candidate; files may vanish while comparing.
	var best string
	var bestMod int64
	for _, e := range entries {
		if _, ok := GoalFor(e.Name()); !ok || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = filepath.Join(dir, e.Name()), mod
		}
	}
	if best == "" {
		return "", ErrNoScripts
	}
	return best, nil
}
