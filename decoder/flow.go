package decoder

import (
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/rga"
	"go.viam.com/rkmpp/utils"
)

// Flow is the shape of the pipeline chosen at info change.
type Flow int

// Flows.
const (
	// NoConversion publishes engine frames as they are.
	NoConversion Flow = iota
	// Convert runs one raster pass.
	Convert
	// SwapAndConvert runs a raster pass into an intermediate format, then a second pass.
	SwapAndConvert
)

func (f Flow) String() string {
	switch f {
	case Convert:
		return "convert"
	case SwapAndConvert:
		return "swap_and_convert"
	default:
		return "no_conversion"
	}
}

// Request is the resolved output request of a decoder.
type Request struct {
	Pixel pixfmt.PixelFormat
	// AFBC is never AFBCAuto here.
	AFBC    config.AFBCMode
	HDRBits int
	LibYUV  bool
	// ScaleWidth and ScaleHeight are zero unless a post-scale was requested.
	ScaleWidth, ScaleHeight int
}

// Scaled reports whether a post-scale was requested.
func (r Request) Scaled() bool {
	return r.ScaleWidth > 0 && r.ScaleHeight > 0
}

// Plan is the outcome of flow selection.
type Plan struct {
	Flow  Flow
	Pixel pixfmt.PixelFormat
	In    pixfmt.Layout
	// Swap is only meaningful for SwapAndConvert.
	Swap pixfmt.Layout
	// Out equals In for NoConversion.
	Out pixfmt.Layout
	// LibYUV runs the last pass on the CPU and reads luma from the pass's source frame.
	LibYUV bool
}

func (p Plan) String() string {
	name := func(l pixfmt.Layout) string {
		if l.Compressed() {
			return l.Pixel.String() + "[FBC]"
		}
		return l.Pixel.String()
	}
	parts := []string{name(p.In)}
	switch p.Flow {
	case SwapAndConvert:
		parts = append(parts, name(p.Swap), name(p.Out))
	case Convert:
		parts = append(parts, name(p.Out))
	}
	s := strings.Join(parts, "->")
	if p.LibYUV {
		s += "[LIBYUV]"
	}
	return s
}

// Lossy reports whether the last pass lowers the quality rank.
func (p Plan) Lossy() bool {
	switch p.Flow {
	case SwapAndConvert:
		return p.Swap.Quality > p.Out.Quality
	case Convert:
		return p.In.Quality > p.Out.Quality
	}
	return false
}

// InputLayout computes the layout of the frames an info change announces.
func InputLayout(info *mpp.Frame) (pixfmt.Layout, error) {
	f, ok := pixfmt.ByEngine(info.Format)
	if !ok {
		return pixfmt.Layout{}, errors.Wrapf(pixfmt.ErrNotFound, "engine format %#x", uint32(info.Format))
	}
	g := pixfmt.Geometry{
		Width:   info.Width,
		Height:  info.Height,
		Align:   pixfmt.StrideAlign,
		HStride: info.HorStride,
		VStride: info.VerStride,
		YOffset: info.OffsetY,
		BufSize: info.BufSize,
	}
	if info.Format.IsFBC() {
		g.FBCStride = info.FBCHdrStride
		if g.FBCStride <= 0 {
			g.FBCStride = utils.AlignUp(info.Width, pixfmt.DRMStrideAlign)
		}
	}
	return f.Layout(g), nil
}

func layoutFor(pix pixfmt.PixelFormat, width, height, align int) (pixfmt.Layout, error) {
	f, ok := pixfmt.ByPixel(pix)
	if !ok {
		return pixfmt.Layout{}, errors.Wrapf(pixfmt.ErrNotFound, "%s", pix)
	}
	return f.Layout(pixfmt.Geometry{Width: width, Height: height, Align: align}), nil
}

func isPlanarTarget(p pixfmt.PixelFormat) bool {
	return p == pixfmt.YUV420P || p == pixfmt.YUV422P || p == pixfmt.YUV444P
}

// SelectFlow picks the pipeline shape for the frames an info change announces. Fewer passes win;
// CPU passes only serve the final conversion when the request asks for them.
func SelectFlow(req Request, info *mpp.Frame) (Plan, error) {
	in, err := InputLayout(info)
	if err != nil {
		return Plan{}, err
	}
	width, height := info.Width, info.Height
	if req.Scaled() {
		width, height = req.ScaleWidth, req.ScaleHeight
	}
	plan := Plan{Pixel: req.Pixel, In: in, Out: in}
	convertTo := func(pix pixfmt.PixelFormat, align int) (Plan, error) {
		out, err := layoutFor(pix, width, height, align)
		if err != nil {
			return Plan{}, err
		}
		plan.Flow, plan.Out = Convert, out
		return plan, nil
	}

	if req.Pixel == pixfmt.DRMPrime {
		switch {
		case req.AFBC == config.AFBCDRM && in.Compressed():
			return plan, nil
		case in.Pixel == pixfmt.NV15 && req.HDRBits == 16:
			return convertTo(pixfmt.P010LE, pixfmt.DRMStrideAlign)
		case in.Pixel == pixfmt.NV15 && req.HDRBits == 8:
			return convertTo(pixfmt.NV12, pixfmt.DRMStrideAlign)
		case in.Compressed():
			return convertTo(in.Pixel, pixfmt.DRMStrideAlign)
		case in.HStride != utils.AlignUp(in.Planes[0].Width, pixfmt.DRMStrideAlign):
			return convertTo(in.Pixel, pixfmt.DRMStrideAlign)
		case req.Scaled():
			return convertTo(in.Pixel, pixfmt.DRMStrideAlign)
		}
		return plan, nil
	}

	if req.Pixel == in.Pixel {
		if in.Compressed() || req.Scaled() {
			return convertTo(in.Pixel, pixfmt.StrideAlign)
		}
		return plan, nil
	}

	swapPix := pixfmt.None
	msbAligned := true
	switch {
	case req.Pixel == pixfmt.YUV420P10LE:
		// The intermediate keeps samples LSB aligned so splitting its chroma yields YUV420P10LE.
		swapPix, msbAligned = pixfmt.P010LE, false
	case in.Pixel == pixfmt.NV15 && req.Pixel == pixfmt.P010LE:
		swapPix = pixfmt.P010LE
	case in.Pixel == pixfmt.NV15 && isPlanarTarget(req.Pixel):
		swapPix = pixfmt.NV12
	case in.Compressed() && (req.LibYUV || isPlanarTarget(req.Pixel)):
		swapPix = in.Pixel
	}

	out, err := layoutFor(req.Pixel, width, height, pixfmt.StrideAlign)
	if err != nil {
		return Plan{}, err
	}
	plan.Out = out
	if swapPix == pixfmt.None {
		plan.Flow = Convert
		plan.LibYUV = req.LibYUV && rga.HasSoftPath(in.Format, out.Format)
		return plan, nil
	}

	swap, err := layoutFor(swapPix, width, height, pixfmt.StrideAlign)
	if err != nil {
		return Plan{}, err
	}
	if swap.RasterUncompact {
		swap.RasterMSBAligned = msbAligned
	}
	plan.Flow, plan.Swap = SwapAndConvert, swap
	plan.LibYUV = req.LibYUV && rga.HasSoftPath(swap.Format, out.Format)
	return plan, nil
}

// RenderDepth is the number of frames a consumer may hold while rendering.
const RenderDepth = 8

// PoolSizes are the buffer counts of the three pools. Zero means the pool is not used.
type PoolSizes struct {
	Decode, Swap, Raster int
}

// SizePools sizes the pools for a plan. H.264 and HEVC may run on two engine cores.
func SizePools(plan Plan, coding mpp.CodingType) PoolSizes {
	s := PoolSizes{Decode: 10}
	if coding == mpp.CodingAVC || coding == mpp.CodingHEVC {
		s.Decode += 8
	}
	switch {
	case plan.Flow == NoConversion || (plan.LibYUV && plan.Flow == Convert):
		s.Decode += RenderDepth
	case plan.Flow == SwapAndConvert && plan.LibYUV:
		s.Swap += RenderDepth
	}
	if plan.Flow == SwapAndConvert {
		s.Swap += 3
	}
	if plan.Flow != NoConversion {
		s.Raster = RenderDepth
	}
	return s
}
