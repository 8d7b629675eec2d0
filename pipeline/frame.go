package pipeline

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
)

// BufferSource hands out pool buffers. *bufpool.Pool satisfies it.
type BufferSource interface {
	Get(size int) (mpp.Buffer, error)
}

// NewFrame creates an engine frame for layout backed by a buffer from src.
func NewFrame(src BufferSource, layout pixfmt.Layout) (*mpp.Frame, error) {
	buf, err := src.Get(layout.Total())
	if err != nil {
		return nil, err
	}
	if buf.Size() < layout.Total() {
		return nil, multierr.Combine(
			errors.Errorf("buffer of %d bytes too small for %s layout of %d bytes", buf.Size(), layout.Pixel, layout.Total()),
			buf.Release())
	}
	engineFormat := layout.Engine
	if layout.Compressed() && engineFormat != pixfmt.EngineNone {
		engineFormat |= pixfmt.EngineFBCAFBCV2
	}
	offsetY := 0
	if len(layout.Planes) > 0 {
		offsetY = layout.Planes[0].Offset
	}
	return &mpp.Frame{
		Width:        layout.Width,
		Height:       layout.Height,
		HorStride:    layout.HStride,
		VerStride:    layout.VStride,
		OffsetY:      offsetY,
		FBCHdrStride: layout.FBCStride,
		Format:       engineFormat,
		Buffer:       buf,
		BufSize:      layout.Total(),
	}, nil
}

// NewItemFrom creates an item whose frame comes from src.
func NewItemFrom(src BufferSource, layout pixfmt.Layout, num uint64) (*Item, error) {
	frame, err := NewFrame(src, layout)
	if err != nil {
		return nil, err
	}
	return &Item{Frame: frame, Layout: layout, Num: num}, nil
}
