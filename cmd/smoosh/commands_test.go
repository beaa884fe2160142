package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smooshjs/smoosh-go/internal/artifact"
	"github.com/smooshjs/smoosh-go/internal/cache"
	"github.com/smooshjs/smoosh-go/internal/config"
	"github.com/smooshjs/smoosh-go/internal/tailer"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// useDefaults installs the globals PersistentPreRunE would set.
func useDefaults(t *testing.T) {
	t.Helper()
	prevCfg, prevLogger := cfg, logger
	cfg = &config.File{Version: config.SupportedVersion}
	logger = slog.New(slog.DiscardHandler)
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newJob(t *testing.T) *compileJob {
	t.Helper()
	useDefaults(t)
	return &compileJob{
		compiler:   smoosh.New(smoosh.WithLogger(logger)),
		frontendID: "reference",
		opts:       cfg.CompileOptions(),
		format:     "pretty",
		logger:     logger,
	}
}

func TestCompile_Files(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.js", "2+2")
	b := writeFile(t, dir, "b.mjs", "x")

	var out bytes.Buffer
	require.NoError(t, newJob(t).run(context.Background(), &out, []string{dir}))

	assert.Equal(t,
		a+": ok bytecode=7 atoms=0 depth=2 ics=1 main=0 flags=-\n"+
			b+": ok bytecode=7 atoms=1 depth=1 ics=1 main=0 flags=strict,module,module_goal\n",
		out.String())
}

func TestCompile_Failures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.js", "1")
	writeFile(t, dir, "class.js", "class A {}")
	writeFile(t, dir, "bad.js", "let x = ;")

	var out bytes.Buffer
	err := newJob(t).run(context.Background(), &out, []string{dir})
	require.ErrorIs(t, err, ErrCompileFailed)
	assert.Contains(t, err.Error(), "2 of 3")

	got := out.String()
	assert.Contains(t, got, "class.js: not implemented")
	assert.Contains(t, got, "bad.js: error \"SyntaxError:")
	assert.Contains(t, got, "ok.js: ok")
}

func TestCompile_ForcedModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x")

	job := newJob(t)
	job.forceGoal = true
	job.opts.Goal = ast.GoalModule
	job.format = "jsonl"

	var out bytes.Buffer
	require.NoError(t, job.run(context.Background(), &out, []string{dir}))
	assert.Contains(t, out.String(), `"flags":["strict","module","module_goal"]`)
}

func TestCompile_Artifact(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "main.js", "var answer = 42; answer")
	outPath := filepath.Join(dir, "main"+ArtifactExt)

	job := newJob(t)
	job.output = outPath
	var out bytes.Buffer
	require.NoError(t, job.run(context.Background(), &out, []string{src}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	a, err := artifact.Unmarshal(data)
	require.NoError(t, err)
	require.NoError(t, a.Verify())
	assert.Equal(t, artifact.HashSource([]byte("var answer = 42; answer")), a.SourceHash)
	assert.Equal(t, [][]byte{[]byte("answer")}, a.Strings)

	var listing bytes.Buffer
	require.NoError(t, runDisasm(context.Background(), &listing, job.compiler, outPath, false))
	assert.Contains(t, listing.String(), "1 atoms")
	assert.Contains(t, listing.String(), `"answer"`)
	assert.Contains(t, listing.String(), "GetGName")
}

func TestCompile_ArtifactNeedsOneInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "1")
	writeFile(t, dir, "b.js", "2")

	job := newJob(t)
	job.output = filepath.Join(dir, "out.smoo")
	err := job.run(context.Background(), &bytes.Buffer{}, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one input")
	assert.NoFileExists(t, job.output)
}

func TestCompile_Cache(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.js", "print(1)")

	c, err := cache.Open(filepath.Join(dir, "cache", "smoosh.db"))
	require.NoError(t, err)
	defer c.Close()

	job := newJob(t)
	job.cache = c

	var first, second bytes.Buffer
	require.NoError(t, job.run(context.Background(), &first, []string{src}))
	require.NoError(t, job.run(context.Background(), &second, []string{src}))

	assert.NotContains(t, first.String(), "(cached)")
	assert.Equal(t, strings.TrimSuffix(first.String(), "\n")+" (cached)\n", second.String())

	n, err := c.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCompile_CacheRejectsTamperedArtifact(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.js", "print(1)")

	c, err := cache.Open(filepath.Join(dir, "smoosh.db"))
	require.NoError(t, err)
	defer c.Close()

	job := newJob(t)
	job.cache = c
	ctx := context.Background()

	var fresh bytes.Buffer
	require.NoError(t, job.run(ctx, &fresh, []string{src}))

	opts := job.opts
	opts.Goal = ast.GoalScript
	key := cache.Key([]byte("print(1)"), opts, job.frontendID)
	a, err := c.Get(ctx, key)
	require.NoError(t, err)
	a.MaximumStackDepth += 5
	require.NoError(t, c.Put(ctx, key, a))

	var out bytes.Buffer
	require.NoError(t, job.run(ctx, &out, []string{src}))
	assert.Equal(t, fresh.String(), out.String())

	a, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.NoError(t, a.Verify(), "recompiled artifact replaces the tampered entry")
}

func TestCompile_CacheSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bad.js", "let x = ;")

	c, err := cache.Open(filepath.Join(dir, "smoosh.db"))
	require.NoError(t, err)
	defer c.Close()

	job := newJob(t)
	job.cache = c
	require.ErrorIs(t, job.run(context.Background(), &bytes.Buffer{}, []string{src}), ErrCompileFailed)

	n, err := c.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompile_MissingInput(t *testing.T) {
	err := newJob(t).run(context.Background(), &bytes.Buffer{}, []string{filepath.Join(t.TempDir(), "nope.js")})
	require.Error(t, err)
}

func TestDumpAST(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x = 1")

	var out bytes.Buffer
	require.NoError(t, dumpAST(&out, []string{dir}, false))
	assert.Contains(t, out.String(), `"goal":"script"`)
	assert.Contains(t, out.String(), `"AssignmentExpression"`)

	out.Reset()
	require.NoError(t, dumpAST(&out, []string{dir}, true))
	assert.Contains(t, out.String(), `"goal":"module"`)

	writeFile(t, dir, "b.js", "let = ;")
	require.Error(t, dumpAST(&bytes.Buffer{}, []string{dir}, false))
}

func TestCheck(t *testing.T) {
	useDefaults(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.js", "var x = 1")
	bad := writeFile(t, dir, "bad.js", "let x = ;")
	mod := writeFile(t, dir, "mod.mjs", "export default 1;")

	var out bytes.Buffer
	err := runCheck(context.Background(), &out, smoosh.New(), []string{dir}, false)
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, err.Error(), "1 of 3")

	got := out.String()
	assert.Contains(t, got, "FAIL "+bad+" (script)\n")
	assert.Contains(t, got, "ok "+good+" (script)\n")
	assert.Contains(t, got, "ok "+mod+" (module)\n")
}

func TestCheck_ForcedModule(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.js", "export default 1;")

	var out bytes.Buffer
	require.Error(t, runCheck(context.Background(), &out, smoosh.New(), []string{src}, false))

	out.Reset()
	require.NoError(t, runCheck(context.Background(), &out, smoosh.New(), []string{src}, true))
	assert.Equal(t, "ok "+src+" (module)\n", out.String())
}

func TestDisasm_Source(t *testing.T) {
	useDefaults(t)
	dir := t.TempDir()
	src := writeFile(t, dir, "a.js", "2+2")

	var out bytes.Buffer
	require.NoError(t, runDisasm(context.Background(), &out, smoosh.New(), src, false))
	assert.Contains(t, out.String(), "; 7 bytes, 0 atoms, depth 2, main at 0\n")
	assert.Contains(t, out.String(), "Add")
	assert.Contains(t, out.String(), "RetRval")
}

func TestDisasm_Errors(t *testing.T) {
	useDefaults(t)
	dir := t.TempDir()

	bad := writeFile(t, dir, "bad.js", "let x = ;")
	err := runDisasm(context.Background(), &bytes.Buffer{}, smoosh.New(), bad, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyntaxError")

	gap := writeFile(t, dir, "gap.js", "if (x) y;")
	err = runDisasm(context.Background(), &bytes.Buffer{}, smoosh.New(), gap, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")

	junk := writeFile(t, dir, "junk"+ArtifactExt, "not cbor")
	err = runDisasm(context.Background(), &bytes.Buffer{}, smoosh.New(), junk, false)
	require.ErrorIs(t, err, artifact.ErrBadArtifact)
}

// lockedBuffer is written by the tail goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTailSession(t *testing.T, out *lockedBuffer) *tailSession {
	t.Helper()
	useDefaults(t)
	return &tailSession{
		compiler: smoosh.New(),
		opts:     cfg.CompileOptions(),
		format:   "pretty",
		out:      out,
		logger:   logger,
		cfg:      tailer.Config{FromStart: true, ReOpen: true, Poll: true},
		rotate:   20 * time.Millisecond,
	}
}

func TestTail_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "live.js", "2+2\n\nclass A {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	s := newTailSession(t, out)
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, path) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), path+":3: not implemented")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), path+":1: ok bytecode=7")
	assert.NotContains(t, out.String(), path+":2:")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("let x = ;\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), path+":4: error")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop after cancel")
	}
}

func TestTail_DirectoryRotation(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "a.js", "1\n")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(first, old, old))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	s := newTailSession(t, out)
	s.cfg.FromStart = false
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, dir) }()

	// Give the first tailer time to seek to the end before rotating.
	time.Sleep(100 * time.Millisecond)
	second := writeFile(t, dir, "b.js", "2+2\n")

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), second+":1: ok")
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, out.String(), first+":1:")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop after cancel")
	}
}

func TestTail_EmptyDirectory(t *testing.T) {
	s := newTailSession(t, &lockedBuffer{})
	require.Error(t, s.run(context.Background(), t.TempDir()))
}
