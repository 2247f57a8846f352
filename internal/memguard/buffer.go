// Package memguard provides secure memory handling for live seed
// material: best-effort page locking plus explicit zeroing.
package memguard

import (
	"runtime"
	"sync"
)

// Buffer wraps a sensitive byte slice. The memory is locked against
// swapping where the platform supports it and zeroed on Destroy (or by
// finalizer if Destroy is never called).
type Buffer struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// NewBuffer creates a zeroed Buffer of the given size.
func NewBuffer(size int) *Buffer {
	data := make([]byte, size)

	b := &Buffer{
		data:   data,
		locked: mlock(data), // best effort, never fails the caller
	}

	runtime.SetFinalizer(b, func(buf *Buffer) {
		buf.Destroy()
	})

	return b
}

// FromBytes copies data into a new Buffer. The caller still owns (and
// should zero) the source slice.
func FromBytes(data []byte) *Buffer {
	b := NewBuffer(len(data))
	copy(b.data, data)
	return b
}

// Bytes returns the underlying slice, or nil after Destroy.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// IsLocked reports whether the memory is page-locked.
func (b *Buffer) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Destroyed reports whether the buffer has been destroyed.
func (b *Buffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data == nil
}

// Destroy zeros the memory and unlocks it. Safe to call multiple times.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}

	for i := range b.data {
		b.data[i] = 0
	}

	if b.locked {
		munlock(b.data)
		b.locked = false
	}

	b.data = nil
	runtime.SetFinalizer(b, nil)
}
