package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"
	"golang.org/x/time/rate"
)

const (
	// MaxLogSize bounds a single plugin log message.
	MaxLogSize = 256

	// LogRateLimit is the number of plugin log calls accepted per second.
	LogRateLimit = 10
)

// hostFunctions backs the "env" module imported by plugins.
type hostFunctions struct {
	logger      *slog.Logger
	rateLimiter *rate.Limiter
	now         func() time.Time
}

func newHostFunctions(logger *slog.Logger) *hostFunctions {
	return &hostFunctions{
		logger:      logger,
		rateLimiter: rate.NewLimiter(LogRateLimit, LogRateLimit),
		now:         time.Now,
	}
}

// log implements env.log(level, ptr, len).
// Levels: 0=debug, 1=info, 2=warn, 3=error.
func (h *hostFunctions) log(ctx context.Context, m api.Module, level, ptr, msgLen uint32) {
	if h.logger == nil || !h.rateLimiter.Allow() {
		return
	}

	truncated := msgLen > MaxLogSize
	if truncated {
		msgLen = MaxLogSize
	}
	raw, ok := m.Memory().Read(ptr, msgLen)
	if !ok {
		return
	}
	h.emit(ctx, level, string(raw), truncated)
}

func (h *hostFunctions) emit(ctx context.Context, level uint32, raw string, truncated bool) {
	msg := strings.ToValidUTF8(raw, "\ufffd")
	if truncated {
		msg += " [truncated]"
	}

	var lvl slog.Level
	switch level {
	case 0:
		lvl = slog.LevelDebug
	case 1:
		lvl = slog.LevelInfo
	case 2:
		lvl = slog.LevelWarn
	case 3:
		lvl = slog.LevelError
	default:
		h.logger.InfoContext(ctx, fmt.Sprintf("[plugin] (level=%d) %s", level, msg))
		return
	}
	h.logger.Log(ctx, lvl, "[plugin] "+msg)
}

// nowMs implements env.now_ms() -> i64, Unix time in milliseconds.
func (h *hostFunctions) nowMs() int64 {
	return h.now().UnixMilli()
}
