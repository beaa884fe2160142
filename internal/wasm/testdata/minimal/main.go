//go:build tinygo

// minimal accepts every input and returns an empty program.
package main

import (
	"encoding/json"
	"unsafe"
)

var heapPtr uintptr = 0x20000

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
	name := "script"
	if goal == 1 {
		name = "module"
	}
	return respond(map[string]any{
		"ok":      true,
		"program": map[string]any{"goal": name, "strict": goal == 1, "body": []any{}},
	})
}

func respond(v any) uint64 {
	out, _ := json.Marshal(v)
	ptr := alloc(uint32(len(out)))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(out)), out)
	return uint64(len(out))<<32 | uint64(ptr)
}

func main() {}
