package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

const sampleYAML = `version: 1
compile:
  goal: module
  no_script_rval: true
  lineno: 10
  column: 2
plugins:
  paths: [plugins/es2022.wasm]
  timeout: 250ms
cache:
  path: .smoosh/cache.db
log:
  level: debug
  format: json
`

const sampleTOML = `version = 1

[compile]
goal = "module"
no_script_rval = true
lineno = 10
column = 2

[plugins]
paths = ["plugins/es2022.wasm"]
timeout = "250ms"

[cache]
path = ".smoosh/cache.db"

[log]
level = "debug"
format = "json"
`

func TestLoadBytes_Formats(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml", sampleYAML, FormatYAML},
		{"toml", sampleTOML, FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := LoadBytes([]byte(tt.data), tt.format)
			require.NoError(t, err)

			assert.Equal(t, 1, f.Version)
			assert.Equal(t, Compile{Goal: "module", NoScriptRval: true, Lineno: 10, Column: 2}, f.Compile)
			assert.Equal(t, []string{"plugins/es2022.wasm"}, f.Plugins.Paths)
			assert.Equal(t, ".smoosh/cache.db", f.Cache.Path)
			assert.Equal(t, Log{Level: "debug", Format: "json"}, f.Log)

			d, err := f.Plugins.TimeoutDuration()
			require.NoError(t, err)
			assert.Equal(t, 250*time.Millisecond, d)

			opts := f.CompileOptions()
			assert.Equal(t, ast.GoalModule, opts.Goal)
			assert.True(t, opts.NoScriptRval)
			assert.Equal(t, uint32(10), opts.Lineno)
		})
	}
}

func TestLoadBytes_Validation(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"bad version", "version: 2\n", "version"},
		{"missing version", "compile:\n  goal: script\n", "version"},
		{"bad goal", "version: 1\ncompile:\n  goal: worker\n", "compile.goal"},
		{"empty plugin path", "version: 1\nplugins:\n  paths: ['  ']\n", "plugins.paths[0]"},
		{"bad timeout", "version: 1\nplugins:\n  timeout: soon\n", "plugins.timeout"},
		{"negative timeout", "version: 1\nplugins:\n  timeout: -1s\n", "plugins.timeout"},
		{"bad level", "version: 1\nlog:\n  level: trace\n", "log.level"},
		{"bad format", "version: 1\nlog:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.data), FormatYAML)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoadBytes_UnknownKeys(t *testing.T) {
	_, err := LoadBytes([]byte("version: 1\ncompiler:\n  goal: module\n"), FormatYAML)
	assert.Error(t, err)

	_, err = LoadBytes([]byte("version = 1\n[compile]\nmode = \"fast\"\n"), FormatTOML)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "compile.mode", ve.Field)
}

func TestLoadBytes_Errors(t *testing.T) {
	_, err := LoadBytes([]byte("  \n"), FormatYAML)
	assert.ErrorContains(t, err, "empty")

	_, err = LoadBytes([]byte("version: [1"), FormatYAML)
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = LoadBytes([]byte("version = "), FormatTOML)
	assert.ErrorContains(t, err, "failed to parse TOML")

	_, err = LoadBytes([]byte("version: 1"), Format("ini"))
	assert.Error(t, err)
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoosh.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "plugins", "es2022.wasm")}, f.Plugins.Paths)
	assert.Equal(t, filepath.Join(dir, ".smoosh", "cache.db"), f.Cache.Path)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "smoosh.ini"))
	assert.ErrorContains(t, err, "unsupported config extension")

	_, err = Load(filepath.Join(t.TempDir(), "smoosh.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "lib")
	require.NoError(t, os.MkdirAll(nested, 0755))
	want := filepath.Join(root, "smoosh.yml")
	require.NoError(t, os.WriteFile(want, []byte("version: 1\n"), 0644))

	got, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("conf/SMOOSH.YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFor("smoosh.toml")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)

	_, err = FormatFor("smoosh.json")
	assert.Error(t, err)
}
