// Package rga drives the 2D raster accelerator: asynchronous blits that restride, rescale or
// convert frames between DMA buffers, with a CPU fallback for the few pairs it cannot handle.
package rga

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/rkmpp/pixfmt"
)

// Dimension limits of the raster hardware. Frames outside them take the CPU path.
const (
	MinDimension = 128
	MaxDimension = 4096
)

var (
	// ErrNoSoftPath is returned when neither the hardware nor the CPU can serve a format pair.
	ErrNoSoftPath = errors.New("no software conversion path")
	// ErrUnsupported is returned by devices for blits they refuse.
	ErrUnsupported = errors.New("raster blit unsupported")
)

// Surface is one side of a blit.
type Surface struct {
	// Fd is the DMA-BUF fd the hardware reads or writes.
	Fd int
	// Mem is the CPU mapping of the same buffer.
	Mem    []byte
	Layout pixfmt.Layout
}

// Width is the active width in pixels.
func (s Surface) Width() int {
	return s.Layout.Width
}

// Height is the active height in rows.
func (s Surface) Height() int {
	return s.Layout.Height
}

// InHardwareRange reports whether the active rectangle fits the hardware limits.
func (s Surface) InHardwareRange() bool {
	return s.Width() >= MinDimension && s.Width() <= MaxDimension &&
		s.Height() >= MinDimension && s.Height() <= MaxDimension
}

// Device is the raster accelerator.
type Device interface {
	// Blit queues a blit and returns the fence that signals its completion.
	Blit(src, dst Surface) (Fence, error)
	Close() error
}

// Fence signals completion of an asynchronous blit.
type Fence interface {
	// Wait waits up to timeout for the fence. Zero polls, a negative timeout blocks.
	Wait(timeout time.Duration) (bool, error)
	Close() error
}
