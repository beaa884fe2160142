package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smooshjs/smoosh-go/internal/wasm"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// buildCompiler returns a Compiler whose parser chain tries each plugin in
// order before the reference parser. The second result names the frontend
// for cache keys. The cleanup function is always non-nil and must be called.
func buildCompiler(ctx context.Context, pluginFiles []string, pluginTimeout time.Duration, logger *slog.Logger) (*smoosh.Compiler, string, func(), error) {
	noop := func() {}

	opts := []smoosh.Option{smoosh.WithLogger(logger)}
	if len(pluginFiles) == 0 {
		return smoosh.New(opts...), "reference", noop, nil
	}

	var parsers []frontend.Parser
	var cleanups []func()
	cleanup := func() {
		for _, c := range cleanups {
			c()
		}
	}

	for i, path := range pluginFiles {
		wp, err := wasm.Load(ctx, path, logger)
		if err != nil {
			cleanup()
			return nil, "", noop, fmt.Errorf("plugin file %d: %w", i+1, err)
		}
		if pluginTimeout > 0 {
			wp.SetTimeout(pluginTimeout)
		}
		logger.Debug("loaded plugin", "path", path)
		parsers = append(parsers, wp)
		cleanups = append(cleanups, func() { wp.Close() })
	}
	parsers = append(parsers, smoosh.ReferenceParser())
	opts = append(opts, smoosh.WithParsers(parsers...))

	id := "plugins:" + strings.Join(pluginFiles, ",")
	return smoosh.New(opts...), id, cleanup, nil
}

// pluginSettings merges --plugin and --plugin-timeout with the config file.
func pluginSettings(flagPlugins []string, flagTimeout time.Duration) ([]string, time.Duration, error) {
	plugins := flagPlugins
	if len(plugins) == 0 {
		plugins = cfg.Plugins.Paths
	}
	timeout := flagTimeout
	if timeout == 0 {
		d, err := cfg.Plugins.TimeoutDuration()
		if err != nil {
			return nil, 0, err
		}
		timeout = d
	}
	return plugins, timeout, nil
}
