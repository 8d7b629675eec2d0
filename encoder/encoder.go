// Package encoder feeds frames to the hardware encoder. Frames decoded by this module are adopted
// without a copy, DRM-PRIME frames are imported, and anything else is copied into pool buffers,
// with a raster pass in front of the engine when the format or size has to change.
package encoder

import (
	"image"
	"time"

	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/bufpool"
	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
)

const (
	// InputTimeout bounds how long the engine waits for room in its input queue.
	InputTimeout = 100 * time.Millisecond
	// PoolSize is the number of input buffers an encoder allocates.
	PoolSize = 6
	headerSize = 1024
)

// Params describe the stream being encoded.
type Params struct {
	// PixelFormat is the declared input format. None accepts whatever the frames carry.
	PixelFormat pixfmt.PixelFormat
	Width       int
	Height      int
	TimeBase    media.Rational
	// FrameRate is optional; the time base is used when it is unset.
	FrameRate media.Rational
	// BitRate is the target in bits per second.
	BitRate int64
	GOPSize int
	// GlobalQuality sets the quantiser in fixqp mode, in lambda units.
	GlobalQuality int
}

// Encoder is one encode instance. It is not safe for concurrent use.
type Encoder struct {
	base     *codec.Base
	logger   logging.Logger
	entry    codec.Entry
	coding   mpp.CodingType
	params   Params
	settings settings
	pool     *bufpool.Pool

	cfg       *mpp.EncoderConfig
	hasConfig bool
	extradata []byte

	ptsStep  int64
	nextPTS  int64
	inFlight int
	sent     uint64
	eosSent  bool
	eof      bool
	closed   bool

	img  image.Image
	i420 video.Reader
}

// New opens an encoder for the codec id. On failure everything acquired is released.
func New(id codec.ID, params Params, deps codec.Deps, opts config.Options, logger logging.Logger) (*Encoder, error) {
	entry, err := codec.Find(id, codec.KindEncoder)
	if err != nil {
		return nil, multierr.Append(err, codec.ReleaseDeps(deps))
	}
	base, err := codec.NewBase(entry, deps, opts, logger)
	if err != nil {
		return nil, err
	}
	e := &Encoder{
		base:   base,
		logger: base.Logger,
		entry:  entry,
		coding: entry.Coding(),
		params: params,
	}
	e.pool = bufpool.New("encode", base.Heap, base.Engine, e.logger)
	e.i420 = video.ToI420(video.ReaderFunc(func() (image.Image, func(), error) {
		return e.img, func() {}, nil
	}))

	if err := e.init(); err != nil {
		e.logger.Errorw("failed to initialize encoder", "error", err)
		return nil, multierr.Combine(err, e.Close())
	}
	return e, nil
}

func (e *Encoder) init() error {
	p := e.params
	if !p.TimeBase.Valid() {
		return codec.Errorf(codec.ErrBadInput, "time base %s is not valid", p.TimeBase)
	}
	if p.PixelFormat != pixfmt.None && !e.entry.Accepts(p.PixelFormat) {
		return codec.Errorf(codec.ErrBadInput, "%s cannot encode %s", e.entry.Name, p.PixelFormat)
	}
	s, err := resolveSettings(e.coding, e.base.Opts)
	if err != nil {
		return err
	}
	e.settings = s

	e.ptsStep = 1
	if p.FrameRate.Valid() {
		step := int64(p.TimeBase.Den) * int64(p.FrameRate.Den) / (int64(p.TimeBase.Num) * int64(p.FrameRate.Num))
		if step > 1 {
			e.ptsStep = step
		}
	}

	engine := e.base.Engine
	cfg, err := engine.EncoderConfig()
	if err != nil {
		return codec.Wrap(codec.ErrFatal, err, "get encoder config")
	}
	e.cfg = cfg
	if err := e.refreshExtradata(); err != nil {
		return err
	}
	if err := engine.SetInputTimeout(InputTimeout); err != nil {
		return codec.Wrap(codec.ErrFatal, err, "set input timeout")
	}
	e.logger.Debugw("encoder ready",
		"rc", s.rc.String(), "bitrate", p.BitRate, "gop", p.GOPSize, "profile", s.profile, "level", s.level)
	return nil
}

func (e *Encoder) refreshExtradata() error {
	buf := make([]byte, headerSize)
	n, err := e.base.Engine.EncoderHeader(buf)
	if err != nil {
		return codec.Wrap(codec.ErrFatal, err, "get encoder header")
	}
	e.extradata = buf[:n]
	return nil
}

// Extradata is the stream header a container needs up front: the parameter sets for H.264 and
// HEVC, empty for VP8. It reflects the real frame size once the first frame was sent.
func (e *Encoder) Extradata() []byte {
	return append([]byte(nil), e.extradata...)
}

// ParameterSets counts the parameter sets carried by Extradata.
func (e *Encoder) ParameterSets() (ParameterSets, error) {
	return CountParameterSets(e.coding, e.extradata)
}

// Config is the configuration applied to the engine, or nil before the first frame.
func (e *Encoder) Config() *mpp.EncoderConfig {
	if !e.hasConfig {
		return nil
	}
	c := *e.cfg
	return &c
}

// Pool is the input buffer pool.
func (e *Encoder) Pool() *bufpool.Pool {
	return e.pool
}

// SendFrame queues a frame. A nil frame ends the stream. ErrAgain means the engine or the pool
// is full: receive packets, then send the same frame again.
func (e *Encoder) SendFrame(frame *media.Frame) error {
	if e.closed {
		return codec.Errorf(codec.ErrFatal, "encoder is closed")
	}
	if frame == nil {
		return e.sendEOS()
	}
	if e.eosSent {
		return codec.Errorf(codec.ErrEOF, "frame after end of stream")
	}

	ef, err := e.ingest(frame)
	if err != nil {
		if !codec.IsControl(err) {
			e.logger.Errorw("failed to ingest frame", "error", err)
		}
		return err
	}
	defer func() {
		if err := ef.Deinit(); err != nil {
			e.logger.Warnw("failed to release input frame", "error", err)
		}
	}()

	pts := frame.PTS
	if pts == media.NoPTS {
		pts = e.nextPTS
	}
	dts := frame.PktDTS
	if dts == media.NoPTS {
		dts = pts
	}
	ef.PTS, ef.DTS = pts, dts
	ef.Color = frame.Color

	if !e.hasConfig {
		if err := e.configure(ef); err != nil {
			return err
		}
	}

	if err := e.base.Engine.EncodePutFrame(ef); err != nil {
		if errors.Is(err, mpp.ErrBufferFull) || errors.Is(err, mpp.ErrTimeout) {
			return codec.ErrAgain
		}
		e.logger.Errorw("failed to queue frame", "error", err)
		return codec.Wrap(codec.ErrFatal, err, "queue frame")
	}
	e.inFlight++
	e.sent++
	e.nextPTS = pts + e.ptsStep
	return nil
}

// SendImage converts img to I420 and queues it with the given timestamp.
func (e *Encoder) SendImage(img image.Image, pts int64) error {
	if img == nil {
		return codec.Errorf(codec.ErrBadInput, "nil image")
	}
	e.img = img
	defer func() { e.img = nil }()
	converted, release, err := e.i420.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		return codec.Wrap(codec.ErrBadInput, err, "convert image to i420")
	}
	ycc, ok := converted.(*image.YCbCr)
	if !ok || ycc.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		return codec.Errorf(codec.ErrBadInput, "image converted to %T, not i420", converted)
	}

	r := ycc.Rect
	yOff, cOff := ycc.YOffset(r.Min.X, r.Min.Y), ycc.COffset(r.Min.X, r.Min.Y)
	frame := media.NewFrame()
	frame.Format = pixfmt.YUV420P
	frame.Width, frame.Height = r.Dx(), r.Dy()
	frame.Data = [][]byte{ycc.Y[yOff:], ycc.Cb[cOff:], ycc.Cr[cOff:]}
	frame.Linesize = []int{ycc.YStride, ycc.CStride, ycc.CStride}
	frame.PTS = pts
	return e.SendFrame(frame)
}

func (e *Encoder) sendEOS() error {
	if e.eosSent {
		return nil
	}
	frame := &mpp.Frame{EOS: true, PTS: media.NoPTS, DTS: media.NoPTS}
	if err := e.base.Engine.EncodePutFrame(frame); err != nil {
		if errors.Is(err, mpp.ErrBufferFull) || errors.Is(err, mpp.ErrTimeout) {
			return codec.ErrAgain
		}
		e.logger.Errorw("failed to queue end of stream", "error", err)
		return codec.Wrap(codec.ErrFatal, err, "queue end of stream")
	}
	e.logger.Debug("end of stream")
	e.eosSent = true
	e.inFlight++
	return nil
}

// configure applies the configuration for frames shaped like f and refreshes the extradata.
func (e *Encoder) configure(f *mpp.Frame) error {
	e.settings.apply(e.cfg, e.coding, f, e.params)
	engine := e.base.Engine
	if err := engine.SetEncoderConfig(e.cfg); err != nil {
		return codec.Wrap(codec.ErrFatal, err, "set encoder config")
	}
	if e.coding == mpp.CodingAVC || e.coding == mpp.CodingHEVC {
		if err := engine.SetHeaderMode(mpp.HeaderModeEachIDR); err != nil {
			return codec.Wrap(codec.ErrFatal, err, "set header mode")
		}
	}
	if err := e.refreshExtradata(); err != nil {
		return err
	}
	e.hasConfig = true
	e.logger.Infow("encoder configured",
		"size", [2]int{f.Width, f.Height}, "format", f.Format.Base(), "rc", e.cfg.RC.Mode.String(),
		"fps_in", media.Rational{Num: e.cfg.RC.FPSInNum, Den: e.cfg.RC.FPSInDen}.String(),
		"fps_out", media.Rational{Num: e.cfg.RC.FPSOutNum, Den: e.cfg.RC.FPSOutDen}.String())
	return nil
}

// ReceivePacket returns the next encoded packet. ErrAgain means no frame is in flight; ErrEOF
// means the stream ended. The packet holds engine memory until released.
func (e *Encoder) ReceivePacket() (*media.Packet, error) {
	if e.closed {
		return nil, codec.Errorf(codec.ErrFatal, "encoder is closed")
	}
	if e.eof {
		return nil, codec.ErrEOF
	}
	if e.inFlight == 0 {
		return nil, codec.ErrAgain
	}
	pkt, err := e.base.Engine.EncodeGetPacket(mpp.Block)
	if err != nil {
		if errors.Is(err, mpp.ErrTimeout) {
			return nil, codec.ErrAgain
		}
		e.logger.Errorw("failed to get packet", "error", err)
		return nil, codec.Wrap(codec.ErrFatal, err, "get packet")
	}
	if pkt == nil {
		return nil, codec.ErrAgain
	}
	if pkt.EOS {
		e.eof = true
		e.inFlight = 0
		if len(pkt.Data) == 0 {
			pkt.Deinit()
			return nil, codec.ErrEOF
		}
	} else {
		e.inFlight--
	}

	out := media.NewPacket(pkt.Data, pkt.Deinit)
	out.PTS, out.DTS = pkt.PTS, pkt.DTS
	if out.PTS <= 0 {
		out.PTS = pkt.DTS
	}
	if out.DTS <= 0 {
		out.DTS = pkt.PTS
	}
	if intra, ok := pkt.MetaInt(mpp.KeyOutputIntra); ok {
		out.Key = intra != 0
	} else {
		out.Key = IsKeyFrame(e.coding, pkt.Data)
	}
	if e.base.FPS != nil {
		e.base.FPS.Tick()
	}
	return out, nil
}

// Flush drops every queued frame and packet. The configuration is kept.
func (e *Encoder) Flush() error {
	if e.closed {
		return nil
	}
	var err error
	if e.base.Inited() {
		err = codec.Wrap(codec.ErrFatal, e.base.Engine.Reset(), "reset engine")
	}
	e.inFlight = 0
	e.eosSent, e.eof = false, false
	if e.base.FPS != nil {
		e.base.FPS.Reset()
	}
	return err
}

// Close releases the pool and destroys the engine context. It is safe to call more than once.
// Packets already returned keep their memory until released.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	err := e.Flush()
	e.closed = true
	return multierr.Combine(err, e.pool.Release(), e.base.Close())
}
