//go:build tinygo

// echo returns the input as a single string-literal expression statement and
// logs through the host.
package main

import (
	"encoding/json"
	"unsafe"
)

var heapPtr uintptr = 0x20000

//go:wasmimport env log
func hostLog(level, ptr, size uint32)

//export abi_version
func abiVersion() uint32 {
	return 1
}

//export alloc
func alloc(size uint32) uint32 {
	ptr := uint32(heapPtr)
	heapPtr += uintptr(size)
	return ptr
}

//export free
func free(ptr, size uint32) {}

//export parse
func parse(ptr, size, goal uint32) uint64 {
	text := string(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), size))

	msg := "echo"
	hostLog(1, uint32(uintptr(unsafe.Pointer(unsafe.StringData(msg)))), uint32(len(msg)))

	pos := map[string]int{"offset": 0, "line": 1, "column": 1}
	return respond(map[string]any{
		"ok": true,
		"program": map[string]any{
			"goal": "script",
			"body": []any{map[string]any{
				"type": "ExpressionStatement",
				"pos":  pos,
				"expr": map[string]any{"type": "StringLiteral", "pos": pos, "string": text},
			}},
		},
	})
}

func respond(v any) uint64 {
	out, _ := json.Marshal(v)
	ptr := alloc(uint32(len(out)))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(out)), out)
	return uint64(len(out))<<32 | uint64(ptr)
}

func main() {}
