// Package main builds libsmoosh, the C ABI of the compile pipeline.
// Build with -buildmode=c-shared.
//
// Every buffer in a SmooshResult is malloc-allocated and owned by the caller
// until it is passed to free_smoosh exactly once.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
    uint8_t* data;
    uintptr_t len;
    uintptr_t capacity;
} SmooshVecU8;

typedef struct {
    SmooshVecU8* data;
    uintptr_t len;
    uintptr_t capacity;
} SmooshVecVecU8;

typedef struct {
    bool no_script_rval;
    bool module;
    uint32_t lineno;
    uint32_t column;
} SmooshCompileOptions;

// Field order is frozen; new fields go at the end and bump
// smoosh_layout_version.
typedef struct {
    bool unimplemented;
    bool has_error;
    SmooshVecU8 error;
    SmooshVecU8 bytecode;
    SmooshVecVecU8 strings;
    uint32_t maximum_stack_depth;
    uint32_t num_ic_entries;

    uint32_t lineno;
    uint32_t column;
    uintptr_t main_offset;
    uint32_t max_fixed_slots;
    uint32_t body_scope_index;
    uint32_t num_type_sets;
    uint32_t flags;
} SmooshResult;

static void smoosh_free_vec(SmooshVecU8 v) {
    free(v.data);
}
*/
import "C"

import (
	"context"
	"log/slog"
	"os"
	"unsafe"

	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

func main() {}

var compiler = smoosh.New(smoosh.WithLogger(hostLogger()))

// hostLogger writes traces to stderr when SMOOSH_LOG names a level.
func hostLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("SMOOSH_LOG") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// input borrows the caller's buffer for the duration of one call.
func input(text *C.uint8_t, length C.uintptr_t) []byte {
	if text == nil || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(text)), int(length))
}

func copyVec(b []byte) C.SmooshVecU8 {
	if len(b) == 0 {
		return C.SmooshVecU8{}
	}
	p := C.malloc(C.size_t(len(b)))
	C.memcpy(p, unsafe.Pointer(&b[0]), C.size_t(len(b)))
	return C.SmooshVecU8{
		data:     (*C.uint8_t)(p),
		len:      C.uintptr_t(len(b)),
		capacity: C.uintptr_t(len(b)),
	}
}

func copyVecVec(list [][]byte) C.SmooshVecVecU8 {
	if len(list) == 0 {
		return C.SmooshVecVecU8{}
	}
	size := C.size_t(len(list)) * C.size_t(unsafe.Sizeof(C.SmooshVecU8{}))
	p := (*C.SmooshVecU8)(C.malloc(size))
	inner := unsafe.Slice(p, len(list))
	for i, b := range list {
		inner[i] = copyVec(b)
	}
	return C.SmooshVecVecU8{
		data:     p,
		len:      C.uintptr_t(len(list)),
		capacity: C.uintptr_t(len(list)),
	}
}

// export copies o into malloc memory. The Go Outcome is released by the
// caller right after.
func export(o *smoosh.Outcome) C.SmooshResult {
	var r C.SmooshResult
	switch o.Status {
	case smoosh.StatusNotImplemented:
		r.unimplemented = true
	case smoosh.StatusError:
		r.has_error = true
		r.error = copyVec(o.Error.View())
	case smoosh.StatusSuccess:
		r.bytecode = copyVec(o.BytecodeView())
		r.strings = copyVecVec(o.Atoms())
		r.maximum_stack_depth = C.uint32_t(o.MaximumStackDepth)
		r.num_ic_entries = C.uint32_t(o.NumICEntries)
		r.lineno = C.uint32_t(o.Lineno)
		r.column = C.uint32_t(o.Column)
		r.main_offset = C.uintptr_t(o.MainOffset)
		r.max_fixed_slots = C.uint32_t(o.MaxFixedSlots)
		r.body_scope_index = C.uint32_t(o.BodyScopeIndex)
		r.num_type_sets = C.uint32_t(o.NumTypeSets)
		r.flags = C.uint32_t(o.Flags)
	}
	return r
}

//export run_smoosh
func run_smoosh(text *C.uint8_t, length C.uintptr_t, options *C.SmooshCompileOptions) C.SmooshResult {
	var opts smoosh.CompileOptions
	if options != nil {
		opts.NoScriptRval = bool(options.no_script_rval)
		opts.Lineno = uint32(options.lineno)
		opts.Column = uint32(options.column)
		if options.module {
			opts.Goal = ast.GoalModule
		}
	}

	var r C.SmooshResult
	// The callback cannot fail; Compile releases the Go side on return.
	_ = compiler.Compile(context.Background(), input(text, length), opts, func(o *smoosh.Outcome) error {
		r = export(o)
		return nil
	})
	return r
}

//export free_smoosh
func free_smoosh(r C.SmooshResult) {
	C.smoosh_free_vec(r.error)
	C.smoosh_free_vec(r.bytecode)
	if r.strings.data != nil {
		for _, v := range unsafe.Slice(r.strings.data, int(r.strings.len)) {
			C.smoosh_free_vec(v)
		}
		C.free(unsafe.Pointer(r.strings.data))
	}
}

//export test_parse_script
func test_parse_script(text *C.uint8_t, length C.uintptr_t) C.bool {
	return C.bool(compiler.ProbeParseScript(context.Background(), input(text, length)))
}

//export test_parse_module
func test_parse_module(text *C.uint8_t, length C.uintptr_t) C.bool {
	return C.bool(compiler.ProbeParseModule(context.Background(), input(text, length)))
}

//export smoosh_layout_version
func smoosh_layout_version() C.uint32_t {
	return C.uint32_t(smoosh.OutcomeLayoutVersion)
}
