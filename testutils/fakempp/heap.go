// Package fakempp is an in-memory stand-in for the video engine, its buffer groups, the DMA heap
// and the raster accelerator. It keeps the same contracts (info change before the first frame,
// external pool accounting, EOS, fences) so pipelines can be tested without hardware.
package fakempp

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/rkmpp/dmaheap"
)

var nextFd = atomic.NewInt64(1000)

func newFd() int {
	return int(nextFd.Inc())
}

// Heap allocates plain memory with made up fds.
type Heap struct {
	mu     sync.Mutex
	open   int
	allocs int
	closed bool

	// FailAt makes the nth allocation (1-based) fail. Zero never fails.
	FailAt int
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc returns a zeroed buffer.
func (h *Heap) Alloc(size int) (*dmaheap.Buffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, dmaheap.ErrClosed
	}
	h.allocs++
	if h.FailAt > 0 && h.allocs == h.FailAt {
		return nil, errors.Errorf("fake heap: allocation %d refused", h.allocs)
	}
	h.open++
	return dmaheap.NewBuffer(newFd(), size, make([]byte, size), func(*dmaheap.Buffer) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.open--
		return nil
	}), nil
}

// Open is the number of heap fds not closed yet.
func (h *Heap) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// Allocs is the number of allocation attempts.
func (h *Heap) Allocs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocs
}

// Close marks the heap closed.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Closed reports whether Close was called.
func (h *Heap) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
