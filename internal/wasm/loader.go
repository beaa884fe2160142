package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/smooshjs/smoosh-go/internal/safefile"
)

const (
	// MaxWasmFileSize bounds the plugin binary (16MB).
	MaxWasmFileSize = 16 * 1024 * 1024

	// ExpectedABIVersion is the plugin ABI this host speaks.
	ExpectedABIVersion = 1
)

var requiredExports = []string{"abi_version", "alloc", "free", "parse"}

// compiledModule is a plugin compiled once and instantiated per call.
type compiledModule struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cache    wazero.CompilationCache
	host     *hostFunctions
}

// close releases the cache, the compiled module, then the runtime.
// Safe to call multiple times.
func (c *compiledModule) close(ctx context.Context) error {
	var errs []error
	if c.cache != nil {
		errs = append(errs, c.cache.Close(ctx))
		c.cache = nil
	}
	if c.compiled != nil {
		errs = append(errs, c.compiled.Close(ctx))
		c.compiled = nil
	}
	if c.runtime != nil {
		errs = append(errs, c.runtime.Close(ctx))
		c.runtime = nil
	}
	return errors.Join(errs...)
}

// compileFile reads, compiles and validates a plugin binary.
func compileFile(ctx context.Context, path string, logger *slog.Logger) (*compiledModule, error) {
	wasmBytes, err := safefile.ReadRegular(path, MaxWasmFileSize)
	if err != nil {
		switch {
		case errors.Is(err, safefile.ErrTooLarge):
			return nil, ErrFileTooLarge
		case errors.Is(err, safefile.ErrNotRegularFile):
			return nil, fmt.Errorf("wasm path is not a regular file: %w", err)
		}
		return nil, fmt.Errorf("failed to read wasm file: %w", err)
	}
	return compileBytes(ctx, wasmBytes, logger)
}

func compileBytes(ctx context.Context, wasmBytes []byte, logger *slog.Logger) (*compiledModule, error) {
	c := &compiledModule{host: newHostFunctions(logger)}
	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	if dir, err := cacheDir(); err == nil {
		cache, err := wazero.NewCompilationCacheWithDir(dir)
		if err == nil {
			c.cache = cache
			rtConfig = rtConfig.WithCompilationCache(cache)
			if logger != nil {
				logger.Debug("using wasm compilation cache", "dir", dir)
			}
		} else if logger != nil {
			logger.Warn("failed to create compilation cache, continuing without cache", "error", err)
		}
	}
	c.runtime = wazero.NewRuntimeWithConfig(ctx, rtConfig)

	fail := func(err error) (*compiledModule, error) {
		c.close(context.Background())
		return nil, err
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, c.runtime); err != nil {
		return fail(&RuntimeError{Operation: "wasi instantiation", Err: err})
	}

	_, err := c.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, level, ptr, msgLen uint32) {
			c.host.log(ctx, m, level, ptr, msgLen)
		}).
		Export("log").
		NewFunctionBuilder().
		WithFunc(func() int64 { return c.host.nowMs() }).
		Export("now_ms").
		Instantiate(ctx)
	if err != nil {
		return fail(&RuntimeError{Operation: "host functions registration", Err: err})
	}

	c.compiled, err = c.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fail(&RuntimeError{Operation: "wasm compilation", Err: err})
	}
	if err := validateExports(c.compiled); err != nil {
		return fail(err)
	}
	return c, nil
}

// validateExports checks only that the ABI functions exist; the version is
// checked by calling abi_version after instantiation.
func validateExports(compiled wazero.CompiledModule) error {
	exported := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exported[name]; !ok {
			return &ABIError{Export: name, Reason: "missing required export"}
		}
	}
	return nil
}

// cacheDir returns the compilation cache directory under XDG_CACHE_HOME.
func cacheDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheHome, "smoosh", "wasm")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
