// Package cvec provides Vec, the owning buffer descriptor used to hand
// slices across the compiler boundary.
//
// A Vec is plain data: a handle, a length and a capacity. It is created
// exactly once from an owned slice with FromOwned and turned back into a
// slice exactly once with IntoOwned. Between those two calls the Vec is the
// only owner of the block.
//
// Misuse (releasing the same Vec twice, or releasing a Vec that FromOwned
// never produced) is a precondition violation. The default build tracks every
// live block and panics with a *ContractError on misuse; builds tagged
// smoosh_notrack skip the bookkeeping and leave misuse undefined.
package cvec

import (
	"fmt"
	"unsafe"
)

// Vec describes a block of Cap elements of type T, of which the first Len are
// valid. The zero Vec is the canonical empty descriptor.
type Vec[T any] struct {
	Data unsafe.Pointer
	Len  uintptr
	Cap  uintptr
}

// ContractError reports a violated ownership precondition.
type ContractError struct {
	Op     string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("cvec: %s: %s", e.Op, e.Reason)
}

func violation(op, reason string) {
	panic(&ContractError{Op: op, Reason: reason})
}

// Empty returns the canonical empty descriptor (nil handle, zero length and
// capacity). Releasing it is a no-op.
func Empty[T any]() Vec[T] {
	return Vec[T]{}
}

// IsEmpty reports whether v is the canonical empty descriptor.
func (v Vec[T]) IsEmpty() bool {
	return v.Data == nil && v.Len == 0 && v.Cap == 0
}

// View returns a borrowed slice over the valid elements of v. The slice is
// capped at Len and must not be retained after v is released.
func (v Vec[T]) View() []T {
	if v.Data == nil {
		return nil
	}
	return unsafe.Slice((*T)(v.Data), v.Len)
}

// Release gives the block back to its owner. See IntoOwned.
func (v Vec[T]) Release() {
	_ = IntoOwned(v)
}

// FromOwned takes ownership of *buf and returns its descriptor. *buf is set to
// nil so the caller can no longer reach the block. A slice with zero
// capacity yields the canonical empty descriptor.
//
// Slices of a zero-size element type share one base address and own no
// memory, so they are described but never tracked.
func FromOwned[T any](buf *[]T) Vec[T] {
	if buf == nil {
		return Vec[T]{}
	}
	s := *buf
	*buf = nil
	if cap(s) == 0 {
		return Vec[T]{}
	}
	p := unsafe.Pointer(unsafe.SliceData(s))
	if !zeroSize[T]() {
		acquire(p)
	}
	return Vec[T]{Data: p, Len: uintptr(len(s)), Cap: uintptr(cap(s))}
}

// IntoOwned reconstructs the slice described by v and returns ownership of it
// to the caller. It is the only legal way to end the life of a Vec.
//
// Preconditions: v was produced by FromOwned and has not been passed to
// IntoOwned before. The canonical empty descriptor is always accepted and
// yields nil.
func IntoOwned[T any](v Vec[T]) []T {
	if v.Data == nil {
		if v.Len != 0 || v.Cap != 0 {
			violation("into owned", fmt.Sprintf("nil handle with len=%d cap=%d", v.Len, v.Cap))
		}
		return nil
	}
	if v.Len > v.Cap {
		violation("into owned", fmt.Sprintf("len %d exceeds cap %d", v.Len, v.Cap))
	}
	if !zeroSize[T]() {
		release(v.Data)
	}
	return unsafe.Slice((*T)(v.Data), v.Cap)[:v.Len]
}

func zeroSize[T any]() bool {
	var zero T
	return unsafe.Sizeof(zero) == 0
}

// FromOwnedNested hands over a sequence of slices as a Vec of Vecs. Each
// inner slice is consumed with FromOwned, then the outer sequence is
// consumed as well. *bufs is set to nil.
func FromOwnedNested[T any](bufs *[][]T) Vec[Vec[T]] {
	if bufs == nil {
		return Vec[Vec[T]]{}
	}
	src := *bufs
	*bufs = nil

	outer := make([]Vec[T], 0, len(src))
	for i := range src {
		outer = append(outer, FromOwned(&src[i]))
	}
	return FromOwned(&outer)
}

// ReleaseNested releases every inner descriptor of v, then v itself. Inner
// descriptors are read before the outer block is given back.
func ReleaseNested[T any](v Vec[Vec[T]]) {
	for _, inner := range v.View() {
		inner.Release()
	}
	v.Release()
}
