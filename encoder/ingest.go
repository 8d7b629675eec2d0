package encoder

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pipeline"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/rga"
	"go.viam.com/rkmpp/utils"
	"go.viam.com/rkmpp/yuv"
)

// Path is how an input frame reaches the engine.
type Path int

// Ingest paths.
const (
	PathAdopt Path = iota
	PathImport
	PathCopy
)

func (p Path) String() string {
	switch p {
	case PathImport:
		return "import"
	case PathCopy:
		return "copy"
	default:
		return "adopt"
	}
}

// Route is the decision taken for one input frame.
type Route struct {
	Path Path
	In   pixfmt.Layout
	// Out is the layout handed to the engine. It equals In unless Convert is set.
	Out     pixfmt.Layout
	Convert bool
}

// engineInputs are the formats the engine encodes directly; 10-bit and 4:4:4 layouts are not
// among them.
var engineInputs = []pixfmt.PixelFormat{
	pixfmt.NV12, pixfmt.NV16, pixfmt.YUV420P, pixfmt.YUV422P, pixfmt.YUYV422, pixfmt.UYVY422,
	pixfmt.BGR24, pixfmt.RGB24, pixfmt.BGR0, pixfmt.BGRA, pixfmt.RGBA, pixfmt.RGB0, pixfmt.BGR565,
}

// PlanRoute picks the ingest path for frame and whether a raster pass has to run first.
func PlanRoute(coding mpp.CodingType, frame *media.Frame, opts config.Options) (Route, error) {
	var r Route
	var err error
	switch {
	case frame.Engine != nil && frame.Engine.Buffer != nil:
		r.Path = PathAdopt
		r.In, err = engineLayout(frame)
	case frame.DRM != nil:
		r.Path = PathImport
		r.In, err = drmLayout(frame)
	default:
		r.Path = PathCopy
		r.In, err = cpuLayout(frame)
	}
	if err != nil {
		return Route{}, err
	}

	target := r.In.Format
	if !lo.Contains(engineInputs, target.Pixel) || (coding == mpp.CodingVP8 && target.Is422()) {
		target, _ = pixfmt.ByPixel(pixfmt.NV12)
	}
	width, height := r.In.Width, r.In.Height
	if opts.Scaled() {
		width = utils.Clamp(opts.Width, config.MinScaleDimension, config.MaxScaleDimension)
		height = utils.Clamp(opts.Height, config.MinScaleDimension, config.MaxScaleDimension)
	}

	r.Out = r.In
	if target.Pixel != r.In.Pixel || width != r.In.Width || height != r.In.Height {
		r.Convert = true
		r.Out = target.Layout(pixfmt.Geometry{Width: width, Height: height, Align: pixfmt.StrideAlign})
		if !r.In.HasRaster() && !rga.HasSoftPath(r.In.Format, target) {
			return Route{}, codec.Errorf(codec.ErrBadInput, "no conversion from %s to %s", r.In.Pixel, target.Pixel)
		}
	}
	return r, nil
}

// engineLayout recovers the layout of a frame produced by this module's decoder.
func engineLayout(frame *media.Frame) (pixfmt.Layout, error) {
	ef := frame.Engine
	f, ok := pixfmt.ByEngine(ef.Format)
	if !ok && frame.DRM != nil && len(frame.DRM.Layers) > 0 {
		f, ok = pixfmt.ByDRM(frame.DRM.Layers[0].Format)
	}
	if !ok {
		f, ok = pixfmt.ByPixel(frame.Format)
	}
	if !ok {
		return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput, "engine frame format %#x is unknown", uint32(ef.Format))
	}
	return f.Layout(pixfmt.Geometry{
		Width:     ef.Width,
		Height:    ef.Height,
		HStride:   ef.HorStride,
		VStride:   ef.VerStride,
		YOffset:   ef.OffsetY,
		BufSize:   ef.BufSize,
		FBCStride: ef.FBCHdrStride,
	}), nil
}

// drmLayout reads the layout of a DRM-PRIME frame from its first layer. The engine takes one
// buffer per frame, so every plane has to sit in plane 0's object where the layout puts it.
func drmLayout(frame *media.Frame) (pixfmt.Layout, error) {
	desc := frame.DRM
	if err := desc.Validate(); err != nil {
		return pixfmt.Layout{}, codec.Wrap(codec.ErrBadInput, err, "drm frame")
	}
	layer := desc.Layers[0]
	f, ok := pixfmt.ByDRM(layer.Format)
	if !ok {
		return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput, "drm format %s is unknown", layer.Format)
	}
	first := layer.Planes[0]
	for i, p := range layer.Planes[1:] {
		if p.ObjectIndex != first.ObjectIndex {
			return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput,
				"drm plane %d is in object %d, plane 0 in object %d", i+1, p.ObjectIndex, first.ObjectIndex)
		}
	}
	obj := desc.Objects[first.ObjectIndex]
	vstride := frame.Height
	if len(layer.Planes) > 1 && first.Pitch > 0 {
		vstride = (layer.Planes[1].Offset - first.Offset) / first.Pitch
	}
	g := pixfmt.Geometry{
		Width:   frame.Width,
		Height:  frame.Height,
		HStride: first.Pitch,
		VStride: vstride,
		YOffset: first.Offset,
		BufSize: obj.Size,
	}
	if obj.Modifier == pixfmt.ModifierAFBC16x16Sparse {
		g.FBCStride = first.Pitch
	}
	l := f.Layout(g)
	if !l.Compressed() {
		if len(layer.Planes) != len(l.Planes) {
			return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput,
				"drm %s layer has %d planes, needs %d", layer.Format, len(layer.Planes), len(l.Planes))
		}
		for i, p := range layer.Planes {
			want := l.Planes[i]
			if p.Offset != want.Offset || p.Pitch != want.HStride {
				return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput,
					"drm plane %d at offset %d pitch %d, engine needs offset %d pitch %d",
					i, p.Offset, p.Pitch, want.Offset, want.HStride)
			}
		}
	}
	if err := l.Validate(obj.Size); err != nil {
		return pixfmt.Layout{}, codec.Wrap(codec.ErrBadInput, err, "drm frame")
	}
	return l, nil
}

// cpuLayout lays out a CPU frame the way it will sit in a pool buffer.
func cpuLayout(frame *media.Frame) (pixfmt.Layout, error) {
	f, ok := pixfmt.ByPixel(frame.Format)
	if !ok {
		return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput, "cannot encode %s frames from memory", frame.Format)
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput, "frame size %dx%d", frame.Width, frame.Height)
	}
	l := f.Layout(pixfmt.Geometry{Width: frame.Width, Height: frame.Height, Align: pixfmt.StrideAlign})
	if len(frame.Data) < len(l.Planes) || len(frame.Linesize) < len(l.Planes) {
		return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput, "%s frame has %d planes, needs %d",
			frame.Format, len(frame.Data), len(l.Planes))
	}
	for i, p := range l.Planes {
		need := (p.Height-1)*frame.Linesize[i] + p.Width
		if frame.Linesize[i] < p.Width || len(frame.Data[i]) < need {
			return pixfmt.Layout{}, codec.Errorf(codec.ErrBadInput, "%s plane %d holds %d bytes with pitch %d, needs %d",
				frame.Format, i, len(frame.Data[i]), frame.Linesize[i], need)
		}
	}
	return l, nil
}

// ingest turns frame into an engine frame holding one buffer reference of its own.
func (e *Encoder) ingest(frame *media.Frame) (*mpp.Frame, error) {
	if e.params.PixelFormat != pixfmt.None && frame.Format != e.params.PixelFormat && frame.Engine == nil {
		return nil, codec.Errorf(codec.ErrBadInput, "frame is %s, stream was opened for %s", frame.Format, e.params.PixelFormat)
	}
	r, err := PlanRoute(e.coding, frame, e.base.Opts)
	if err != nil {
		return nil, err
	}

	need := 0
	if r.Path == PathCopy {
		need = r.In.Total()
	}
	if r.Convert && r.Out.Total() > need {
		need = r.Out.Total()
	}
	if need > 0 {
		if err := e.ensurePool(need); err != nil {
			return nil, err
		}
	}

	var src *mpp.Frame
	switch r.Path {
	case PathAdopt:
		src = adopt(frame.Engine)
	case PathImport:
		src, err = e.importDRM(frame.DRM, r.In)
	default:
		src, err = e.copyIn(frame, r.In)
	}
	if err != nil {
		return nil, err
	}
	if !r.Convert {
		return src, nil
	}
	out, err := e.convert(src, r)
	return out, multierr.Append(err, src.Deinit())
}

// adopt shares the decoder frame's buffer without copying.
func adopt(ef *mpp.Frame) *mpp.Frame {
	ef.Buffer.Ref()
	f := &mpp.Frame{
		Width:        ef.Width,
		Height:       ef.Height,
		HorStride:    ef.HorStride,
		VerStride:    ef.VerStride,
		OffsetY:      ef.OffsetY,
		FBCHdrStride: ef.FBCHdrStride,
		Format:       ef.Format,
		Buffer:       ef.Buffer,
		BufSize:      ef.BufSize,
	}
	f.CopyProps(ef)
	return f
}

func (e *Encoder) importDRM(desc *media.DRMDescriptor, l pixfmt.Layout) (*mpp.Frame, error) {
	obj := desc.Objects[desc.Layers[0].Planes[0].ObjectIndex]
	buf, err := e.base.Engine.ImportBuffer(obj.Fd, obj.Size)
	if err != nil {
		return nil, codec.Wrap(codec.ErrResource, err, "import dma-buf fd %d", obj.Fd)
	}
	format := l.Engine
	if l.Compressed() && format != pixfmt.EngineNone {
		format |= pixfmt.EngineFBCAFBCV2
	}
	return &mpp.Frame{
		Width:        l.Width,
		Height:       l.Height,
		HorStride:    l.HStride,
		VerStride:    l.VStride,
		OffsetY:      l.Planes[0].Offset,
		FBCHdrStride: l.FBCStride,
		Format:       format,
		Buffer:       buf,
		BufSize:      obj.Size,
	}, nil
}

func (e *Encoder) copyIn(frame *media.Frame, l pixfmt.Layout) (*mpp.Frame, error) {
	ef, err := e.newFrame(l)
	if err != nil {
		return nil, err
	}
	mem := ef.Buffer.Bytes()
	for i, p := range l.Planes {
		yuv.CopyPlane(frame.Data[i], frame.Linesize[i], mem[p.Offset:], p.HStride, p.Width, p.Height)
	}
	return ef, nil
}

// convert runs the pre-encode raster pass and waits for it, so the source can go right after.
func (e *Encoder) convert(src *mpp.Frame, r Route) (*mpp.Frame, error) {
	dst, err := e.newFrame(r.Out)
	if err != nil {
		return nil, err
	}
	job, err := e.base.Driver.Convert(surface(src, r.In), surface(dst, r.Out), rga.Options{})
	if err != nil {
		return nil, multierr.Append(
			codec.Wrap(codec.ErrHwFail, err, "convert %s %dx%d to %s %dx%d",
				r.In.Pixel, r.In.Width, r.In.Height, r.Out.Pixel, r.Out.Width, r.Out.Height),
			dst.Deinit())
	}
	status, err := job.Poll(rga.StuckAfter)
	err = multierr.Append(err, job.Close())
	if status != rga.Signaled {
		e.logger.Warnw("raster fence stuck, frame dropped", "status", status.String(), "error", err)
		return nil, multierr.Append(codec.Errorf(codec.ErrFrameDropped, "pre-encode conversion %s", status), dst.Deinit())
	}
	if err != nil {
		e.logger.Warnw("failed to close raster fence", "error", err)
	}
	return dst, nil
}

func surface(f *mpp.Frame, l pixfmt.Layout) rga.Surface {
	return rga.Surface{Fd: f.Buffer.Fd(), Mem: f.Buffer.Bytes(), Layout: l}
}

func (e *Encoder) newFrame(l pixfmt.Layout) (*mpp.Frame, error) {
	ef, err := pipeline.NewFrame(e.pool, l)
	if err != nil {
		if errors.Is(err, mpp.ErrNoBuffer) {
			return nil, codec.ErrAgain
		}
		return nil, codec.Wrap(codec.ErrResource, err, "encode pool")
	}
	return ef, nil
}

// ensurePool makes sure pool buffers hold size bytes. A pool that is too small is reallocated
// once the engine has handed every buffer back.
func (e *Encoder) ensurePool(size int) error {
	if e.pool.Capacity() > 0 && e.pool.Size() >= size {
		return nil
	}
	if e.pool.Capacity() > 0 && e.pool.Unused() < e.pool.Capacity() {
		return codec.ErrAgain
	}
	if err := e.pool.Allocate(size, PoolSize); err != nil {
		return codec.Wrap(codec.ErrResource, err, "allocate encode pool")
	}
	return nil
}
