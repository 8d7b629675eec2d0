package inject

import (
	"go.viam.com/rkmpp/dmaheap"
)

// Heap is an injected DMA heap.
type Heap struct {
	dmaheap.Heap
	AllocFunc func(size int) (*dmaheap.Buffer, error)
	CloseFunc func() error
}

// NewHeap returns a new injected heap falling back to inner.
func NewHeap(inner dmaheap.Heap) *Heap {
	return &Heap{Heap: inner}
}

// Alloc calls the injected Alloc or the real version.
func (h *Heap) Alloc(size int) (*dmaheap.Buffer, error) {
	if h.AllocFunc == nil {
		return h.Heap.Alloc(size)
	}
	return h.AllocFunc(size)
}

// Close calls the injected Close or the real version.
func (h *Heap) Close() error {
	if h.CloseFunc == nil {
		return h.Heap.Close()
	}
	return h.CloseFunc()
}
