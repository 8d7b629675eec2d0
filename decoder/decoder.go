// Package decoder implements the hardware decode pipeline: the engine decodes packets into pool
// buffers, the raster accelerator (or the CPU) converts them into the format the consumer asked
// for, and finished frames are handed out either as DRM-PRIME descriptors or mapped planes.
package decoder

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/bufpool"
	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pipeline"
	"go.viam.com/rkmpp/pixfmt"
)

// State is the lifecycle state of a decoder.
type State int

// Decoder states.
const (
	StateFresh State = iota
	StateConfigured
	StateDraining
	StateFlushed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateDraining:
		return "draining"
	case StateFlushed:
		return "flushed"
	case StateClosed:
		return "closed"
	default:
		return "fresh"
	}
}

const (
	// FifoLimit bounds the decode and raster queues.
	FifoLimit = 2
	// DrainTimeout is how long the engine is waited on once the stream has ended.
	DrainTimeout = 5 * time.Millisecond
	// eosRetries bounds the attempts to queue the end of stream packet before it is deferred to
	// ReceiveFrame.
	eosRetries = 3
)

// Size thresholds of the automatic policies.
const (
	afbcMaxPixels   = 7680 * 4320
	libyuvMinPixels = 3840 * 2160
)

// Params describe what the consumer wants from a decoder.
type Params struct {
	// PixelFormat is the requested output. None means NV12 unless the environment overrides it.
	PixelFormat pixfmt.PixelFormat
	// Width and Height are the coded dimensions announced by the container, zero when unknown.
	Width, Height int
}

// Decoder is one decode instance. It is not safe for concurrent use; frames it returns may be
// released from any goroutine.
type Decoder struct {
	base   *codec.Base
	logger logging.Logger
	req    Request
	coding mpp.CodingType

	decodePool *bufpool.Pool
	swapPool   *bufpool.Pool
	rgaPool    *bufpool.Pool
	decodeFifo *pipeline.Fifo
	rgaFifo    *pipeline.Fifo
	hw         *media.HWFramesContext

	state      State
	plan       Plan
	hasPlan    bool
	configured bool

	frameNum   uint64
	eofAt      uint64
	eos        bool
	eosSent    bool
	pendingEOS bool
}

// New opens a decoder for the codec id. On failure everything acquired is released.
func New(id codec.ID, params Params, deps codec.Deps, opts config.Options, logger logging.Logger) (*Decoder, error) {
	entry, err := codec.Find(id, codec.KindDecoder)
	if err != nil {
		return nil, multierr.Append(err, codec.ReleaseDeps(deps))
	}
	base, err := codec.NewBase(entry, deps, opts, logger)
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		base:       base,
		logger:     base.Logger,
		coding:     entry.Coding(),
		decodeFifo: pipeline.NewFifo(FifoLimit),
		rgaFifo:    pipeline.NewFifo(FifoLimit),
	}
	d.decodePool = bufpool.New("decode", base.Heap, base.Engine, d.logger)
	d.swapPool = bufpool.New("swap", base.Heap, base.Engine, d.logger)
	d.rgaPool = bufpool.New("rga", base.Heap, base.Engine, d.logger)

	if err := d.init(entry, params); err != nil {
		d.logger.Errorw("failed to initialize decoder", "error", err)
		return nil, multierr.Combine(err, d.Close())
	}
	return d, nil
}

func (d *Decoder) init(entry codec.Entry, params Params) error {
	req, err := resolveRequest(entry, params, d.base.Env, d.base.Opts)
	if err != nil {
		return err
	}
	if req.LibYUV && d.base.Env.LibYUV == config.Auto {
		d.logger.Info("Using partial libyuv soft conversion")
	}
	d.req = req

	engine := d.base.Engine
	if err := engine.SetParserFastMode(true); err != nil {
		return codec.Wrap(codec.ErrFatal, err, "enable parser fast mode")
	}
	if err := engine.SetDisableError(true); err != nil {
		return codec.Wrap(codec.ErrFatal, err, "disable error frames")
	}
	if req.AFBC != config.AFBCNone {
		if err := engine.SetOutputFormat(pixfmt.EngineFBCAFBCV2); err != nil {
			return codec.Wrap(codec.ErrFatal, err, "request afbc output")
		}
	}
	d.logger.Debugw("decoder ready",
		"pixfmt", req.Pixel.String(), "afbc", req.AFBC.String(), "hdrbits", req.HDRBits, "libyuv", req.LibYUV)
	return nil
}

// resolveRequest applies the environment overrides and the automatic policies.
func resolveRequest(entry codec.Entry, params Params, env config.Env, opts config.Options) (Request, error) {
	pix := params.PixelFormat
	if env.PixFmt != pixfmt.None {
		pix = env.PixFmt
	}
	if pix == pixfmt.None {
		pix = pixfmt.NV12
	}
	if !entry.Accepts(pix) {
		return Request{}, codec.Errorf(codec.ErrBadInput, "%s cannot output %s", entry.Name, pix)
	}
	pixels := params.Width * params.Height

	afbc := env.AFBC
	if afbc == config.AFBCAuto {
		afbc = config.AFBCDecoder
		if entry.ID == codec.IDAV1 || pixels > afbcMaxPixels {
			afbc = config.AFBCNone
		}
	}

	var libyuv bool
	switch env.LibYUV {
	case config.On:
		libyuv = true
	case config.Auto:
		libyuv = pix == pixfmt.YUV420P10LE || pix == pixfmt.YUV444P ||
			(pixels > libyuvMinPixels && (pix == pixfmt.YUV420P || pix == pixfmt.YUV422P))
	}
	if pix == pixfmt.DRMPrime {
		libyuv = false
	}

	hdrBits := env.DRMHDRBits
	if hdrBits == 0 {
		hdrBits = 8
		if afbc == config.AFBCDRM {
			hdrBits = 10
		}
	}
	if afbc == config.AFBCDRM && hdrBits != 10 {
		return Request{}, codec.Errorf(codec.ErrBadInput, "afbc drm output needs 10 hdr bits, got %d", hdrBits)
	}

	req := Request{Pixel: pix, AFBC: afbc, HDRBits: hdrBits, LibYUV: libyuv}
	if opts.Scaled() {
		if libyuv || afbc == config.AFBCDRM {
			return Request{}, codec.Errorf(codec.ErrBadInput, "post-scale to %dx%d is not available with %s",
				opts.Width, opts.Height, lo.Ternary(libyuv, "libyuv", "afbc drm"))
		}
		req.ScaleWidth, req.ScaleHeight = opts.Width, opts.Height
	}
	return req, nil
}

// State is the current lifecycle state.
func (d *Decoder) State() State {
	return d.state
}

// Plan is the active flow and whether one was chosen yet.
func (d *Decoder) Plan() (Plan, bool) {
	return d.plan, d.hasPlan
}

// Configured reports whether an info change was absorbed since the last flush.
func (d *Decoder) Configured() bool {
	return d.configured
}

// Request is the resolved output request.
func (d *Decoder) Request() Request {
	return d.req
}

// FrameNum is the number of frames decoded since the last flush.
func (d *Decoder) FrameNum() uint64 {
	return d.frameNum
}

// Queued is the number of items in the decode and raster queues.
func (d *Decoder) Queued() (decode, raster int) {
	return d.decodeFifo.Len(), d.rgaFifo.Len()
}

// Pools returns the decode, swap and raster pools.
func (d *Decoder) Pools() (decode, swap, raster *bufpool.Pool) {
	return d.decodePool, d.swapPool, d.rgaPool
}

// HWFrames is the shared frames context of DRM-PRIME output, nil otherwise.
func (d *Decoder) HWFrames() *media.HWFramesContext {
	return d.hw
}

// SendPacket queues a compressed packet. A nil or empty packet ends the stream. ErrAgain means the
// engine input is full: receive frames, then send the same packet again.
func (d *Decoder) SendPacket(pkt *media.Packet) error {
	if d.state == StateClosed {
		return codec.Errorf(codec.ErrFatal, "decoder is closed")
	}
	if pkt == nil || len(pkt.Data) == 0 {
		return d.sendEOS()
	}
	if d.eosSent {
		return codec.Errorf(codec.ErrEOF, "packet after end of stream")
	}
	ep := mpp.NewPacket(pkt.Data, nil)
	ep.PTS, ep.DTS = pkt.PTS, pkt.DTS
	if err := d.base.Engine.DecodePutPacket(ep); err != nil {
		if errors.Is(err, mpp.ErrBufferFull) {
			return codec.ErrAgain
		}
		d.logger.Errorw("failed to queue packet", "error", err)
		return codec.Wrap(codec.ErrFatal, err, "queue packet")
	}
	return nil
}

func (d *Decoder) sendEOS() error {
	if d.eosSent {
		return nil
	}
	d.eosSent = true
	if d.state != StateFresh {
		d.state = StateDraining
	}
	for i := 0; i < eosRetries; i++ {
		err := d.putEOS()
		if err == nil {
			return nil
		}
		if !errors.Is(err, codec.ErrAgain) {
			return err
		}
	}
	d.pendingEOS = true
	d.logger.Debug("engine input full, end of stream deferred")
	return nil
}

func (d *Decoder) putEOS() error {
	pkt := mpp.NewPacket(nil, nil)
	pkt.EOS = true
	pkt.PTS, pkt.DTS = media.NoPTS, media.NoPTS
	if err := d.base.Engine.DecodePutPacket(pkt); err != nil {
		if errors.Is(err, mpp.ErrBufferFull) {
			return codec.ErrAgain
		}
		d.logger.Errorw("failed to queue end of stream", "error", err)
		return codec.Wrap(codec.ErrFatal, err, "queue end of stream")
	}
	d.pendingEOS = false
	return nil
}

// ReceiveFrame runs the pipeline until a frame is ready or no stage can progress. It returns
// ErrAgain when more input or time is needed and ErrEOF once a drained stream is fully delivered.
func (d *Decoder) ReceiveFrame() (*media.Frame, error) {
	if d.state == StateClosed {
		return nil, codec.Errorf(codec.ErrFatal, "decoder is closed")
	}
	if d.pendingEOS {
		if err := d.putEOS(); err != nil && !errors.Is(err, codec.ErrAgain) {
			return nil, err
		}
	}
	for {
		progressed := false
		for _, stage := range []func() (bool, error){d.decodeStage, d.convertStage} {
			ok, err := stage()
			if err != nil {
				return nil, err
			}
			progressed = progressed || ok
		}
		frame, ok, err := d.publishStage()
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
		progressed = progressed || ok
		if d.eos && d.decodeFifo.Empty() && d.rgaFifo.Empty() {
			d.logger.Debugw("end of stream", "frames", d.eofAt)
			return nil, codec.ErrEOF
		}
		if !progressed {
			return nil, codec.ErrAgain
		}
	}
}

// Flush drops every queued packet and in-flight frame. Frames already delivered stay valid.
func (d *Decoder) Flush() error {
	if d.state == StateClosed {
		return nil
	}
	var err error
	if d.base.Inited() {
		err = codec.Wrap(codec.ErrFatal, d.base.Engine.Reset(), "reset engine")
	}
	err = multierr.Append(err, d.drain())
	d.configured = false
	d.frameNum, d.eofAt = 0, 0
	d.eos, d.eosSent, d.pendingEOS = false, false, false
	if d.base.FPS != nil {
		d.base.FPS.Reset()
	}
	d.state = StateFlushed
	return err
}

// drain empties both queues, waiting for every pending blit before its buffers go back.
func (d *Decoder) drain() error {
	var err error
	release := func(it *pipeline.Item) {
		for x := it; x != nil; x = x.Child() {
			if _, pollErr := x.Poll(mpp.Block); pollErr != nil {
				err = multierr.Append(err, pollErr)
			}
		}
		err = multierr.Append(err, it.Release())
	}
	d.decodeFifo.Drain(release)
	d.rgaFifo.Drain(release)
	return err
}

// Close flushes, releases the pools and destroys the engine context. It is safe to call more than
// once. Delivered frames keep their buffers alive until released.
func (d *Decoder) Close() error {
	if d.state == StateClosed {
		return nil
	}
	err := d.Flush()
	d.state = StateClosed
	err = multierr.Combine(err, d.decodePool.Release(), d.swapPool.Release(), d.rgaPool.Release())
	if d.hw != nil {
		d.hw.Unref()
		d.hw = nil
	}
	return multierr.Append(err, d.base.Close())
}
