//go:build !linux

package dmaheap

import "github.com/pkg/errors"

// SystemHeap is unavailable off Linux.
type SystemHeap struct{}

// OpenSystem always fails off Linux.
func OpenSystem(paths ...string) (*SystemHeap, error) {
	return nil, errors.New("dma heaps are only available on linux")
}

// Path is empty off Linux.
func (h *SystemHeap) Path() string {
	return ""
}

// Alloc always fails off Linux.
func (h *SystemHeap) Alloc(size int) (*Buffer, error) {
	return nil, ErrClosed
}

// Close is a no-op off Linux.
func (h *SystemHeap) Close() error {
	return nil
}
