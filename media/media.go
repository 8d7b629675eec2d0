// Package media models the host framework objects the codecs exchange with their callers:
// frames, packets, DRM-PRIME descriptors and the shared hardware frames context.
package media

import (
	"fmt"
	"math"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
)

// NoPTS marks a missing timestamp.
const NoPTS int64 = math.MinInt64

// Rational is a num/den pair such as a time base or a frame rate.
type Rational struct {
	Num, Den int
}

// Valid reports whether both terms are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Packet is a compressed access unit.
type Packet struct {
	Data     []byte
	PTS, DTS int64
	Key      bool

	release func()
}

// NewPacket wraps data that must be handed back through release once the packet is done with.
func NewPacket(data []byte, release func()) *Packet {
	return &Packet{Data: data, PTS: NoPTS, DTS: NoPTS, release: release}
}

// Release returns the packet's memory to its owner. It is safe to call more than once.
func (p *Packet) Release() {
	if p == nil || p.release == nil {
		return
	}
	release := p.release
	p.release = nil
	release()
}

// ColorTags are the colour description tags passed through from the bitstream.
type ColorTags = mpp.ColorInfo

// Frame is an uncompressed picture. Either Data holds CPU plane slices or DRM describes the
// DMA-BUF planes.
type Frame struct {
	Format        pixfmt.PixelFormat
	Width, Height int

	Data     [][]byte
	Linesize []int

	DRM      *DRMDescriptor
	HWFrames *HWFramesContext

	PTS    int64
	PktDTS int64
	Color  ColorTags

	Interlaced    bool
	TopFieldFirst bool

	// FrameNum is the decoder's sequence number for the frame, starting at 1 after each flush.
	FrameNum         uint64
	BitsPerComponent int

	// Engine is set when the frame's memory is an engine frame of this module, so an encoder
	// can adopt it without copying.
	Engine *mpp.Frame

	releaser *releaser
}

// NewFrame returns an empty frame with unset timestamps.
func NewFrame() *Frame {
	return &Frame{PTS: NoPTS, PktDTS: NoPTS}
}

// SetRelease installs the function dropping the frame's buffer references.
func (f *Frame) SetRelease(fn func() error) {
	f.releaser = newReleaser(fn)
}

// Release drops the buffer references the frame holds. It is safe to call more than once and from
// any goroutine.
func (f *Frame) Release() error {
	if f == nil || f.releaser == nil {
		return nil
	}
	return f.releaser.release()
}

// Released reports whether Release already ran.
func (f *Frame) Released() bool {
	return f.releaser != nil && f.releaser.done.Load()
}
