package rga

import (
	"github.com/pkg/errors"

	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/yuv"
)

type softPair struct {
	src, dst pixfmt.PixelFormat
}

type softConv func(src, dst Surface)

var softConversions = map[softPair]softConv{
	{pixfmt.NV12, pixfmt.YUV420P}:       splitChroma,
	{pixfmt.NV16, pixfmt.YUV422P}:       splitChroma,
	{pixfmt.NV24, pixfmt.YUV444P}:       splitChroma,
	{pixfmt.P010LE, pixfmt.YUV420P10LE}: splitChroma16,
	{pixfmt.NV16, pixfmt.NV12}:          halveChroma,
	{pixfmt.NV16, pixfmt.YUV420P}:       halveAndSplitChroma,
}

// HasSoftPath reports whether the CPU can convert between the two formats.
func HasSoftPath(src, dst pixfmt.Format) bool {
	if src.Pixel == dst.Pixel {
		return true
	}
	_, ok := softConversions[softPair{src.Pixel, dst.Pixel}]
	return ok
}

// Soft converts on the CPU. Compressed sources and pairs outside the table fail with
// ErrNoSoftPath. Scaling is not supported.
func Soft(src, dst Surface, shareLuma bool) error {
	sl, dl := src.Layout, dst.Layout
	if sl.Compressed() {
		return errors.Wrapf(ErrNoSoftPath, "%s source is compressed", sl.Pixel)
	}
	if sl.Width != dl.Width || sl.Height != dl.Height {
		return errors.Wrapf(ErrNoSoftPath, "scaling %dx%d to %dx%d", sl.Width, sl.Height, dl.Width, dl.Height)
	}
	if src.Mem == nil || dst.Mem == nil {
		return errors.Wrap(ErrNoSoftPath, "surface is not mapped")
	}
	if err := sl.Validate(len(src.Mem)); err != nil {
		return errors.Wrap(err, "source layout")
	}
	if err := dl.Validate(len(dst.Mem)); err != nil {
		return errors.Wrap(err, "destination layout")
	}

	if sl.Pixel == dl.Pixel {
		copyPlanes(src, dst, shareLuma)
		return nil
	}
	conv, ok := softConversions[softPair{sl.Pixel, dl.Pixel}]
	if !ok {
		return errors.Wrapf(ErrNoSoftPath, "%s to %s", sl.Pixel, dl.Pixel)
	}
	if !shareLuma {
		copyPlane(src, dst, 0)
	}
	conv(src, dst)
	return nil
}

func plane(s Surface, i int) ([]byte, pixfmt.Plane) {
	p := s.Layout.Planes[i]
	return s.Mem[p.Offset:p.End()], p
}

func copyPlane(src, dst Surface, i int) {
	s, sp := plane(src, i)
	d, dp := plane(dst, i)
	yuv.CopyPlane(s, sp.HStride, d, dp.HStride, sp.Width, sp.Height)
}

func copyPlanes(src, dst Surface, shareLuma bool) {
	for i := range src.Layout.Planes {
		if i == 0 && shareLuma {
			continue
		}
		copyPlane(src, dst, i)
	}
}

// chromaPairs is the number of UV pairs per row of the source chroma plane.
func chromaPairs(src Surface, bytesPerSample int) int {
	pair := 2 * bytesPerSample
	return (src.Layout.Planes[1].Width + pair - 1) / pair
}

func splitChroma(src, dst Surface) {
	s, sp := plane(src, 1)
	u, up := plane(dst, 1)
	v, vp := plane(dst, 2)
	yuv.SplitUV(s, sp.HStride, u, up.HStride, v, vp.HStride, chromaPairs(src, 1), sp.Height)
}

func splitChroma16(src, dst Surface) {
	s, sp := plane(src, 1)
	u, up := plane(dst, 1)
	v, vp := plane(dst, 2)
	yuv.SplitUV16(s, sp.HStride, u, up.HStride, v, vp.HStride, chromaPairs(src, 2), sp.Height)
}

func halveChroma(src, dst Surface) {
	s, sp := plane(src, 1)
	d, dp := plane(dst, 1)
	yuv.ScaleUVHalfVertical(s, sp.HStride, d, dp.HStride, chromaPairs(src, 1), sp.Height)
}

func halveAndSplitChroma(src, dst Surface) {
	s, sp := plane(src, 1)
	u, up := plane(dst, 1)
	v, vp := plane(dst, 2)
	yuv.SplitUVHalfVertical(s, sp.HStride, u, up.HStride, v, vp.HStride, chromaPairs(src, 1), sp.Height)
}
