package pixfmt

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// PixelFormat is the host framework's pixel format tag.
type PixelFormat int

// Framework pixel formats known to the registry.
const (
	None PixelFormat = iota
	DRMPrime
	NV12
	NV15
	NV16
	NV20
	NV24
	YUV420P
	YUV422P
	YUV444P
	YUYV422
	UYVY422
	BGR24
	RGB24
	BGR0
	BGRA
	RGBA
	RGB0
	BGR565
	P010LE
	YUV420P10LE
)

var pixelFormatNames = map[PixelFormat]string{
	None:        "none",
	DRMPrime:    "drm_prime",
	NV12:        "nv12",
	NV15:        "nv15",
	NV16:        "nv16",
	NV20:        "nv20le",
	NV24:        "nv24",
	YUV420P:     "yuv420p",
	YUV422P:     "yuv422p",
	YUV444P:     "yuv444p",
	YUYV422:     "yuyv422",
	UYVY422:     "uyvy422",
	BGR24:       "bgr24",
	RGB24:       "rgb24",
	BGR0:        "bgr0",
	BGRA:        "bgra",
	RGBA:        "rgba",
	RGB0:        "rgb0",
	BGR565:      "bgr565le",
	P010LE:      "p010le",
	YUV420P10LE: "yuv420p10le",
}

// Short names the framework also accepts.
var pixelFormatAliases = map[string]PixelFormat{
	"bgr565": BGR565,
	"nv20":   NV20,
	"p010":   P010LE,
}

func (p PixelFormat) String() string {
	if name, ok := pixelFormatNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pixfmt(%d)", int(p))
}

// ParsePixelFormat resolves a framework pixel format name such as "nv12" or "yuv420p10le".
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range pixelFormatNames {
		if p != None && n == name {
			return p, nil
		}
	}
	if p, ok := pixelFormatAliases[name]; ok {
		return p, nil
	}
	return None, errors.Errorf("unknown pixel format %q", name)
}

// EngineFormat is the video engine's frame format tag.
type EngineFormat uint32

// Video engine frame formats.
const (
	EngineYUV420SP      EngineFormat = 0x0
	EngineYUV420SP10Bit EngineFormat = 0x1
	EngineYUV422SP      EngineFormat = 0x2
	EngineYUV422SP10Bit EngineFormat = 0x3
	EngineYUV420P       EngineFormat = 0x4
	EngineYUV422P       EngineFormat = 0x6
	EngineYUV422YUYV    EngineFormat = 0x8
	EngineYUV422UYVY    EngineFormat = 0xa
	EngineYUV444SP      EngineFormat = 0xf
	EngineYUV444P       EngineFormat = 0x10
	EngineRGB565        EngineFormat = 0x10000
	EngineBGR565        EngineFormat = 0x10001
	EngineRGB888        EngineFormat = 0x10006
	EngineBGR888        EngineFormat = 0x10007
	EngineARGB8888      EngineFormat = 0x1000a
	EngineABGR8888      EngineFormat = 0x1000b
	EngineBGRA8888      EngineFormat = 0x1000c
	EngineRGBA8888      EngineFormat = 0x1000d

	// EngineNone marks formats the engine cannot produce or consume.
	EngineNone EngineFormat = 0xffffffff

	// EngineFBCAFBCV2 is or-ed into a format when frames are AFBC tiled-compressed.
	EngineFBCAFBCV2 EngineFormat = 0x00200000
	// EngineFormatMask strips the compression flags from a format.
	EngineFormatMask EngineFormat = 0x000fffff
)

// Base returns the format without compression flags.
func (f EngineFormat) Base() EngineFormat {
	if f == EngineNone {
		return f
	}
	return f & EngineFormatMask
}

// IsFBC reports whether the format carries an AFBC flag.
func (f EngineFormat) IsFBC() bool {
	return f != EngineNone && f&^EngineFormatMask&EngineFBCAFBCV2 != 0
}

// RasterFormat is the raster accelerator's surface format tag.
type RasterFormat uint32

// Raster accelerator surface formats.
const (
	RasterRGBA8888     RasterFormat = 0x00 << 8
	RasterRGBX8888     RasterFormat = 0x01 << 8
	RasterRGB888       RasterFormat = 0x02 << 8
	RasterBGRA8888     RasterFormat = 0x03 << 8
	RasterBGR888       RasterFormat = 0x07 << 8
	RasterYCbCr422SP   RasterFormat = 0x08 << 8
	RasterYCbCr422P    RasterFormat = 0x09 << 8
	RasterYCbCr420SP   RasterFormat = 0x0a << 8
	RasterYCbCr420P    RasterFormat = 0x0b << 8
	RasterBGRX8888     RasterFormat = 0x16 << 8
	RasterYUYV422      RasterFormat = 0x1c << 8
	RasterUYVY422      RasterFormat = 0x1e << 8
	RasterYCbCr420SP10 RasterFormat = 0x20 << 8
	RasterYCbCr422SP10 RasterFormat = 0x22 << 8
	RasterBGR565       RasterFormat = 0x24 << 8

	// RasterUnknown marks formats the raster accelerator cannot read or write.
	RasterUnknown RasterFormat = 0x100 << 8
)

// Fourcc is a DRM fourcc code.
type Fourcc uint32

// NewFourcc packs four characters into a fourcc code.
func NewFourcc(a, b, c, d byte) Fourcc {
	return Fourcc(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

func (f Fourcc) String() string {
	if f == 0 {
		return "none"
	}
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// DRM fourcc codes.
var (
	DRMNV12   = NewFourcc('N', 'V', '1', '2')
	DRMNV15   = NewFourcc('N', 'V', '1', '5')
	DRMNV16   = NewFourcc('N', 'V', '1', '6')
	DRMNV20   = NewFourcc('N', 'V', '2', '0')
	DRMNV24   = NewFourcc('N', 'V', '2', '4')
	DRMYU12   = NewFourcc('Y', 'U', '1', '2')
	DRMYU16   = NewFourcc('Y', 'U', '1', '6')
	DRMYU24   = NewFourcc('Y', 'U', '2', '4')
	DRMYUYV   = NewFourcc('Y', 'U', 'Y', 'V')
	DRMUYVY   = NewFourcc('U', 'Y', 'V', 'Y')
	DRMRGB888 = NewFourcc('R', 'G', '2', '4')
	DRMBGR888 = NewFourcc('B', 'G', '2', '4')
	DRMXRGB   = NewFourcc('X', 'R', '2', '4')
	DRMARGB   = NewFourcc('A', 'R', '2', '4')
	DRMABGR   = NewFourcc('A', 'B', '2', '4')
	DRMXBGR   = NewFourcc('X', 'B', '2', '4')
	DRMBGR565 = NewFourcc('B', 'G', '1', '6')
	DRMP010   = NewFourcc('P', '0', '1', '0')

	// Compressed variants exported together with ModifierAFBC16x16Sparse.
	DRMYUV420_8Bit  = NewFourcc('Y', 'U', '0', '8')
	DRMYUV420_10Bit = NewFourcc('Y', 'U', '1', '0')
	DRMY210         = NewFourcc('Y', '2', '1', '0')
)

// ModifierAFBC16x16Sparse is the DRM format modifier for ARM AFBC with 16x16 superblocks and
// sparse layout.
const ModifierAFBC16x16Sparse uint64 = (0x08 << 56) | afbcBlockSize16x16 | afbcSparse

const (
	afbcBlockSize16x16 = 1
	afbcSparse         = 1 << 6
)
