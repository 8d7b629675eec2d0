package mpp

import (
	"sync"

	"go.viam.com/rkmpp/pixfmt"
)

// Frame mode flags describing field order.
const (
	ModeTopFirst     uint32 = 0x4
	ModeBotFirst     uint32 = 0x8
	ModeDeinterlaced uint32 = 0xC
	ModeFieldMask    uint32 = 0xC
)

// ColorInfo carries the colour tags the engine reports. Values follow the ISO/IEC 23091-4 code
// points and pass through untouched.
type ColorInfo struct {
	Range     int
	Primaries int
	Transfer  int
	Space     int
}

// Frame is an engine frame. A frame with a Buffer holds one reference on it until Deinit.
type Frame struct {
	Width, Height int
	// HorStride is the plane 0 pitch in bytes, VerStride the plane 0 row count.
	HorStride, VerStride int
	OffsetY              int
	FBCHdrStride         int
	Format               pixfmt.EngineFormat
	Buffer               Buffer
	BufSize              int

	PTS, DTS int64
	Mode     uint32
	Color    ColorInfo

	EOS        bool
	Discard    bool
	ErrInfo    uint32
	InfoChange bool

	deinit sync.Once
}

// Deinit drops the frame's buffer reference. It is safe to call more than once.
func (f *Frame) Deinit() error {
	if f == nil {
		return nil
	}
	var err error
	f.deinit.Do(func() {
		if f.Buffer != nil {
			err = f.Buffer.Release()
		}
	})
	return err
}

// CopyProps copies timestamps, field order and colour tags from src.
func (f *Frame) CopyProps(src *Frame) {
	f.PTS = src.PTS
	f.DTS = src.DTS
	f.Mode = src.Mode
	f.Color = src.Color
}

// Interlaced reports whether the frame was deinterlaced by the engine.
func (f *Frame) Interlaced() bool {
	return f.Mode&ModeFieldMask == ModeDeinterlaced
}

// TopFieldFirst reports whether the top field comes first.
func (f *Frame) TopFieldFirst() bool {
	return f.Mode&ModeFieldMask == ModeTopFirst
}
