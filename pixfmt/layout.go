package pixfmt

import (
	"github.com/pkg/errors"

	"go.viam.com/rkmpp/utils"
)

// Stride alignments used across the pipeline.
const (
	// StrideAlign is the default row alignment of CPU visible buffers.
	StrideAlign = 16
	// DRMStrideAlign is the row alignment EGL importers require for DRM-PRIME frames.
	DRMStrideAlign = 64
)

// Geometry describes the frame a layout is computed for. Zero hints are derived from the
// dimensions and Align.
type Geometry struct {
	Width, Height int
	Align         int
	// HStride is the plane 0 row pitch in bytes, VStride the plane 0 row count.
	HStride, VStride int
	// YOffset is the byte offset of plane 0 within the buffer.
	YOffset int
	// BufSize is the buffer size reported by the engine.
	BufSize int
	// FBCStride is the AFBC header stride. Non-zero means the frame is compressed.
	FBCStride int
}

// Plane is the placement of one plane inside a buffer.
type Plane struct {
	Offset int
	// HStride is the row pitch in bytes, VStride the number of rows reserved.
	HStride, VStride int
	// Width is the active row size in bytes, Height the active row count.
	Width, Height int
	Size          int
}

// End returns the first byte past the plane.
func (p Plane) End() int {
	return p.Offset + p.Size
}

// Layout is a format row bound to concrete frame geometry.
type Layout struct {
	Format
	Width, Height    int
	HStride, VStride int
	HStridePixels    int
	Planes           []Plane
	// Size covers the luma offset and every plane.
	Size int
	// Overshoot is the extra padding the engine requires past Size.
	Overshoot int
	FBCStride int
}

// Layout computes the plane placement for the geometry.
func (f Format) Layout(g Geometry) Layout {
	rowBytes := f.Bpp.Apply(g.Width)
	hstride := g.HStride
	if hstride <= 0 {
		hstride = utils.AlignUp(rowBytes, g.Align)
	}
	vstride := g.VStride
	if vstride <= 0 {
		vstride = utils.AlignUp(g.Height, g.Align)
	}

	l := Layout{
		Format:        f,
		Width:         g.Width,
		Height:        g.Height,
		HStride:       hstride,
		VStride:       vstride,
		HStridePixels: hstride * f.Bpp.Den / f.Bpp.Num,
		Planes:        make([]Plane, f.NumPlanes),
		FBCStride:     g.FBCStride,
	}

	offset := g.YOffset
	for i := 0; i < f.NumPlanes; i++ {
		pf := f.Planes[i]
		p := Plane{
			Offset:  offset,
			HStride: hstride,
			VStride: pf.Height.Apply(vstride),
			Width:   rowBytes,
			Height:  pf.Height.Apply(g.Height),
		}
		if i > 0 {
			p.HStride = f.chromaBytes(pf.Stride, hstride)
			p.Width = f.chromaBytes(pf.Width, rowBytes)
		}
		p.Size = p.HStride * p.VStride
		l.Planes[i] = p
		offset += p.Size
	}
	l.Size = offset
	if g.BufSize > l.Size {
		l.Overshoot = g.BufSize - l.Size
	}
	return l
}

// chromaBytes scales a plane 0 byte count to a chroma plane. Formats with whole byte samples
// round up in samples so odd geometry never splits a sample.
func (f Format) chromaBytes(scale Factor, bytes int) int {
	if f.Bpp.Den != 1 || f.Bpp.Num <= 1 {
		return scale.Apply(bytes)
	}
	samples := Factor{1, f.Bpp.Num}.Apply(bytes)
	return scale.Apply(samples) * f.Bpp.Num
}

// Total is the number of bytes a buffer holding this layout must provide.
func (l Layout) Total() int {
	return l.Size + l.Overshoot
}

// Compressed reports whether the layout is AFBC tiled-compressed.
func (l Layout) Compressed() bool {
	return l.FBCStride > 0
}

// Fourcc returns the DRM code to export the layout with.
func (l Layout) Fourcc() Fourcc {
	if l.Compressed() && l.DRMFBC != 0 {
		return l.DRMFBC
	}
	return l.DRM
}

// Validate checks that planes are monotonic, non-overlapping, large enough and fit in size bytes.
func (l Layout) Validate(size int) error {
	if l.Total() > size {
		return errors.Errorf("%s layout needs %d bytes, buffer has %d", l.Pixel, l.Total(), size)
	}
	prevEnd := 0
	for i, p := range l.Planes {
		if p.Offset < prevEnd {
			return errors.Errorf("%s plane %d at %d overlaps previous plane ending at %d", l.Pixel, i, p.Offset, prevEnd)
		}
		if p.HStride < p.Width {
			return errors.Errorf("%s plane %d pitch %d is narrower than row %d", l.Pixel, i, p.HStride, p.Width)
		}
		if p.VStride < p.Height {
			return errors.Errorf("%s plane %d reserves %d rows for %d", l.Pixel, i, p.VStride, p.Height)
		}
		if p.End() > size {
			return errors.Errorf("%s plane %d ends at %d past buffer size %d", l.Pixel, i, p.End(), size)
		}
		prevEnd = p.End()
	}
	return nil
}
