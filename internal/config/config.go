// Package config loads smoosh.yaml / smoosh.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/smooshjs/smoosh-go/internal/safefile"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

const (
	// MaxFileSize bounds a configuration file (1MB).
	MaxFileSize = 1 * 1024 * 1024

	// SupportedVersion is the configuration schema version.
	SupportedVersion = 1
)

// FileNames are searched in order by Find.
var FileNames = []string{"smoosh.yaml", "smoosh.yml", "smoosh.toml"}

// Format selects the configuration syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
}

// File is the configuration document.
type File struct {
	Version int     `yaml:"version" toml:"version"`
	Compile Compile `yaml:"compile" toml:"compile"`
	Plugins Plugins `yaml:"plugins" toml:"plugins"`
	Cache   Cache   `yaml:"cache" toml:"cache"`
	Log     Log     `yaml:"log" toml:"log"`
}

// Compile holds default compile options.
type Compile struct {
	Goal         string `yaml:"goal" toml:"goal"`
	NoScriptRval bool   `yaml:"no_script_rval" toml:"no_script_rval"`
	Lineno       uint32 `yaml:"lineno" toml:"lineno"`
	Column       uint32 `yaml:"column" toml:"column"`
}

// Plugins lists Wasm parser plugins tried before the reference parser.
type Plugins struct {
	Paths   []string `yaml:"paths" toml:"paths"`
	Timeout string   `yaml:"timeout" toml:"timeout"`
}

// Cache configures the bytecode cache.
type Cache struct {
	Path string `yaml:"path" toml:"path"`
}

// Log configures diagnostics.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

var (
	validLevels  = []string{"", "debug", "info", "warn", "error"}
	validFormats = []string{"", "text", "json"}
)

// sanitizePathError drops the path from an *os.PathError; callers add the
// path themselves where it is useful.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

// Load reads and validates a configuration file. Relative plugin and cache
// paths are resolved against the file's directory.
func Load(path string) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := safefile.ReadRegular(path, MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", sanitizePathError(err))
	}
	f, err := LoadBytes(data, format)
	if err != nil {
		return nil, err
	}
	f.resolve(filepath.Dir(path))
	return f, nil
}

// LoadBytes parses and validates a configuration document. Unknown keys
// are rejected.
func LoadBytes(data []byte, format Format) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("config file is empty")
	}

	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &ValidationError{Field: undecoded[0].String(), Message: "unknown key"}
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the schema version and every enumerated value.
func (f *File) Validate() error {
	if f.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", f.Version, SupportedVersion),
		}
	}
	if _, err := ast.ParseGoal(f.Compile.Goal); err != nil {
		return &ValidationError{Field: "compile.goal", Message: err.Error()}
	}
	for i, p := range f.Plugins.Paths {
		if strings.TrimSpace(p) == "" {
			return &ValidationError{Field: fmt.Sprintf("plugins.paths[%d]", i), Message: "path is empty"}
		}
	}
	if _, err := f.Plugins.TimeoutDuration(); err != nil {
		return &ValidationError{Field: "plugins.timeout", Message: err.Error()}
	}
	if !slices.Contains(validLevels, f.Log.Level) {
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", f.Log.Level)}
	}
	if !slices.Contains(validFormats, f.Log.Format) {
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", f.Log.Format)}
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value yields zero (use the
// plugin default).
func (p Plugins) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}

// CompileOptions converts the compile section. The goal was checked by
// Validate.
func (f *File) CompileOptions() smoosh.CompileOptions {
	goal, _ := ast.ParseGoal(f.Compile.Goal)
	return smoosh.CompileOptions{
		NoScriptRval: f.Compile.NoScriptRval,
		Goal:         goal,
		Lineno:       f.Compile.Lineno,
		Column:       f.Compile.Column,
	}
}

func (f *File) resolve(dir string) {
	for i, p := range f.Plugins.Paths {
		if !filepath.IsAbs(p) {
			f.Plugins.Paths[i] = filepath.Join(dir, p)
		}
	}
	if f.Cache.Path != "" && !filepath.IsAbs(f.Cache.Path) {
		f.Cache.Path = filepath.Join(dir, f.Cache.Path)
	}
}

// Find walks up from startDir looking for one of FileNames. It returns ""
// when none exists.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
