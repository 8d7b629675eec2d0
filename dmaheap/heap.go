// Package dmaheap allocates DMA-BUF memory from the kernel's system heaps.
package dmaheap

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultPaths are the heaps tried in order. The dma32 heap keeps buffers below 4GiB, which
// older raster cores need.
var DefaultPaths = []string{"/dev/dma_heap/system-dma32", "/dev/dma_heap/system"}

// ErrClosed is returned by allocations on a closed heap.
var ErrClosed = errors.New("dma heap closed")

// Heap hands out DMA-BUF backed buffers.
type Heap interface {
	Alloc(size int) (*Buffer, error)
	Close() error
}

// Buffer is one allocation: a DMA-BUF fd and an optional CPU mapping.
type Buffer struct {
	Fd   int
	Size int
	Mem  []byte

	closeOnce sync.Once
	closeErr  error
	closer    func(*Buffer) error
}

// NewBuffer wraps an allocation. closer runs once when the buffer is closed.
func NewBuffer(fd, size int, mem []byte, closer func(*Buffer) error) *Buffer {
	return &Buffer{Fd: fd, Size: size, Mem: mem, closer: closer}
}

// Close unmaps the buffer and closes its fd.
func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		if b.closer != nil {
			b.closeErr = b.closer(b)
		}
		b.Mem = nil
		b.Fd = -1
	})
	return b.closeErr
}
