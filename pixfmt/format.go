// Package pixfmt is the pixel format registry shared by the decoder, encoder and raster paths.
// Every row ties together the tags used by the host framework, the video engine, the raster
// accelerator and DRM, plus the plane geometry needed to lay a frame out in memory.
package pixfmt

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrNotFound is returned when no registry row matches a lookup.
var ErrNotFound = errors.New("pixel format not found")

// Factor is a num/den multiplier.
type Factor struct {
	Num, Den int
}

var one = Factor{1, 1}

// Apply returns ceil(v * num / den).
func (f Factor) Apply(v int) int {
	if f.Den == 0 {
		return v
	}
	return (v*f.Num + f.Den - 1) / f.Den
}

// PlaneFactor scales a plane relative to plane 0. Width applies to the row size in bytes, Height
// to the row count and Stride to the row pitch.
type PlaneFactor struct {
	Width, Height, Stride Factor
}

// Format is one immutable registry row.
type Format struct {
	Pixel  PixelFormat
	Engine EngineFormat
	Raster RasterFormat
	DRM    Fourcc
	// DRMFBC is the fourcc used when the frame is AFBC compressed.
	DRMFBC Fourcc

	NumPlanes int
	// Bpp is bytes per luma sample on plane 0.
	Bpp Factor
	// Depth is bits per component.
	Depth int
	// Quality ranks formats for lossy conversion warnings.
	Quality int

	// Packed10 formats store 10-bit samples without padding.
	Packed10 bool
	// RasterUncompact selects 16-bit samples when the raster tag is a 10-bit one.
	RasterUncompact bool
	// RasterMSBAligned selects MSB aligned samples for uncompact 16-bit layouts.
	RasterMSBAligned bool

	Planes [3]PlaneFactor
}

var (
	semi420 = PlaneFactor{one, Factor{1, 2}, one}
	semi422 = PlaneFactor{one, one, one}
	semi444 = PlaneFactor{Factor{2, 1}, one, Factor{2, 1}}
	plan420 = PlaneFactor{Factor{1, 2}, Factor{1, 2}, Factor{1, 2}}
	plan422 = PlaneFactor{Factor{1, 2}, one, Factor{1, 2}}
	plan444 = PlaneFactor{one, one, one}
	ident   = PlaneFactor{one, one, one}
)

// Quality ranks: chroma resolution first, then bit depth.
const (
	quality565    = 5
	quality420    = 10
	quality420x10 = 15
	quality422    = 20
	quality422x10 = 25
	quality444    = 30
)

var formats = []Format{
	{
		Pixel: NV12, Engine: EngineYUV420SP, Raster: RasterYCbCr420SP, DRM: DRMNV12, DRMFBC: DRMYUV420_8Bit,
		NumPlanes: 2, Bpp: one, Depth: 8, Quality: quality420,
		Planes: [3]PlaneFactor{ident, semi420},
	},
	{
		Pixel: NV15, Engine: EngineYUV420SP10Bit, Raster: RasterYCbCr420SP10, DRM: DRMNV15, DRMFBC: DRMYUV420_10Bit,
		NumPlanes: 2, Bpp: Factor{5, 4}, Depth: 10, Quality: quality420x10, Packed10: true,
		Planes: [3]PlaneFactor{ident, semi420},
	},
	{
		Pixel: NV16, Engine: EngineYUV422SP, Raster: RasterYCbCr422SP, DRM: DRMNV16, DRMFBC: DRMYUYV,
		NumPlanes: 2, Bpp: one, Depth: 8, Quality: quality422,
		Planes: [3]PlaneFactor{ident, semi422},
	},
	{
		Pixel: NV20, Engine: EngineYUV422SP10Bit, Raster: RasterYCbCr422SP10, DRM: DRMNV20, DRMFBC: DRMY210,
		NumPlanes: 2, Bpp: Factor{5, 4}, Depth: 10, Quality: quality422x10, Packed10: true,
		Planes: [3]PlaneFactor{ident, semi422},
	},
	{
		Pixel: NV24, Engine: EngineYUV444SP, Raster: RasterUnknown, DRM: DRMNV24,
		NumPlanes: 2, Bpp: one, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident, semi444},
	},
	{
		Pixel: YUV420P, Engine: EngineYUV420P, Raster: RasterYCbCr420P, DRM: DRMYU12,
		NumPlanes: 3, Bpp: one, Depth: 8, Quality: quality420,
		Planes: [3]PlaneFactor{ident, plan420, plan420},
	},
	{
		Pixel: YUV422P, Engine: EngineYUV422P, Raster: RasterYCbCr422P, DRM: DRMYU16,
		NumPlanes: 3, Bpp: one, Depth: 8, Quality: quality422,
		Planes: [3]PlaneFactor{ident, plan422, plan422},
	},
	{
		Pixel: YUV444P, Engine: EngineYUV444P, Raster: RasterUnknown, DRM: DRMYU24,
		NumPlanes: 3, Bpp: one, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident, plan444, plan444},
	},
	{
		Pixel: YUYV422, Engine: EngineYUV422YUYV, Raster: RasterYUYV422, DRM: DRMYUYV,
		NumPlanes: 1, Bpp: Factor{2, 1}, Depth: 8, Quality: quality422,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: UYVY422, Engine: EngineYUV422UYVY, Raster: RasterUYVY422, DRM: DRMUYVY,
		NumPlanes: 1, Bpp: Factor{2, 1}, Depth: 8, Quality: quality422,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: BGR24, Engine: EngineBGR888, Raster: RasterBGR888, DRM: DRMRGB888,
		NumPlanes: 1, Bpp: Factor{3, 1}, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: RGB24, Engine: EngineRGB888, Raster: RasterRGB888, DRM: DRMBGR888,
		NumPlanes: 1, Bpp: Factor{3, 1}, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: BGRA, Engine: EngineBGRA8888, Raster: RasterBGRA8888, DRM: DRMARGB,
		NumPlanes: 1, Bpp: Factor{4, 1}, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: BGR0, Engine: EngineBGRA8888, Raster: RasterBGRX8888, DRM: DRMXRGB,
		NumPlanes: 1, Bpp: Factor{4, 1}, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: RGBA, Engine: EngineRGBA8888, Raster: RasterRGBA8888, DRM: DRMABGR,
		NumPlanes: 1, Bpp: Factor{4, 1}, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: RGB0, Engine: EngineRGBA8888, Raster: RasterRGBX8888, DRM: DRMXBGR,
		NumPlanes: 1, Bpp: Factor{4, 1}, Depth: 8, Quality: quality444,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: BGR565, Engine: EngineBGR565, Raster: RasterBGR565, DRM: DRMBGR565,
		NumPlanes: 1, Bpp: Factor{2, 1}, Depth: 5, Quality: quality565,
		Planes: [3]PlaneFactor{ident},
	},
	{
		Pixel: P010LE, Engine: EngineNone, Raster: RasterYCbCr420SP10, DRM: DRMP010,
		NumPlanes: 2, Bpp: Factor{2, 1}, Depth: 10, Quality: quality420x10,
		RasterUncompact: true, RasterMSBAligned: true,
		Planes: [3]PlaneFactor{ident, semi420},
	},
	{
		Pixel: YUV420P10LE, Engine: EngineNone, Raster: RasterUnknown,
		NumPlanes: 3, Bpp: Factor{2, 1}, Depth: 10, Quality: quality420x10,
		Planes: [3]PlaneFactor{ident, plan420, plan420},
	},
}

// DecoderOutputs lists the pixel formats a decoder can deliver, in preference order.
var DecoderOutputs = []PixelFormat{
	DRMPrime, NV12, NV15, NV16, NV24, YUV420P, YUV422P, YUV444P, YUYV422, UYVY422,
	BGR24, BGR0, BGRA, BGR565, RGBA, RGB0, P010LE, YUV420P10LE,
}

// EncoderInputs lists the pixel formats the encoder accepts.
var EncoderInputs = append([]PixelFormat{NV20, RGB24}, DecoderOutputs...)

// All returns every registry row.
func All() []Format {
	return append([]Format(nil), formats...)
}

// ByPixel finds the row for a framework tag.
func ByPixel(p PixelFormat) (Format, bool) {
	return lo.Find(formats, func(f Format) bool { return f.Pixel == p })
}

// ByEngine finds the row for an engine tag. Compression flags are ignored.
func ByEngine(e EngineFormat) (Format, bool) {
	if e == EngineNone {
		return Format{}, false
	}
	base := e.Base()
	return lo.Find(formats, func(f Format) bool { return f.Engine == base })
}

// ByRaster finds the row for a raster tag. uncompact picks the 16-bit variant of 10-bit tags.
func ByRaster(r RasterFormat, uncompact bool) (Format, bool) {
	if r == RasterUnknown {
		return Format{}, false
	}
	return lo.Find(formats, func(f Format) bool { return f.Raster == r && f.RasterUncompact == uncompact })
}

// ByDRM finds the row for a DRM fourcc, matching either the linear or the compressed code.
func ByDRM(fourcc Fourcc) (Format, bool) {
	if fourcc == 0 {
		return Format{}, false
	}
	return lo.Find(formats, func(f Format) bool { return f.DRM == fourcc || f.DRMFBC == fourcc })
}

// Kind selects which tag a Lookup matches on.
type Kind int

// Tag kinds.
const (
	KindPixel Kind = iota
	KindEngine
	KindRaster
	KindDRM
)

// Lookup resolves a tag of the given kind and computes its layout for the geometry.
func Lookup(kind Kind, value uint32, g Geometry) (Layout, error) {
	var (
		f  Format
		ok bool
	)
	switch kind {
	case KindPixel:
		f, ok = ByPixel(PixelFormat(value))
	case KindEngine:
		f, ok = ByEngine(EngineFormat(value))
	case KindRaster:
		f, ok = ByRaster(RasterFormat(value), false)
	case KindDRM:
		f, ok = ByDRM(Fourcc(value))
	}
	if !ok {
		return Layout{}, errors.Wrapf(ErrNotFound, "kind %d value %#x", kind, value)
	}
	return f.Layout(g), nil
}

// IsPlanar reports whether every chroma component has its own plane.
func (f Format) IsPlanar() bool {
	return f.NumPlanes == 3
}

// IsSemiPlanar reports whether chroma is interleaved in a second plane.
func (f Format) IsSemiPlanar() bool {
	return f.NumPlanes == 2
}

// IsRGB reports whether the format is a packed RGB format.
func (f Format) IsRGB() bool {
	switch f.Pixel {
	case BGR24, RGB24, BGR0, BGRA, RGBA, RGB0, BGR565:
		return true
	}
	return false
}

// Is422 reports whether chroma is subsampled horizontally but not vertically.
func (f Format) Is422() bool {
	switch f.Pixel {
	case NV16, NV20, YUV422P, YUYV422, UYVY422:
		return true
	}
	return false
}

// HasRaster reports whether the raster accelerator can address the format.
func (f Format) HasRaster() bool {
	return f.Raster != RasterUnknown
}

// HasEngine reports whether the video engine can address the format.
func (f Format) HasEngine() bool {
	return f.Engine != EngineNone
}

func (f Format) String() string {
	return f.Pixel.String()
}
