//go:build tinygo

// slow never returns from parse.
package main

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
	for {
	}
}

func main() {}
