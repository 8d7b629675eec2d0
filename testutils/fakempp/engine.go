package fakempp

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/utils"
)

// Stream describes what the fake decoder produces.
type Stream struct {
	Width, Height int
	// Format is the linear engine format of decoded frames.
	Format pixfmt.EngineFormat
	// HorStride and VerStride default to 16 aligned values.
	HorStride, VerStride int
	// FBCCapable makes the decoder honour an AFBC output format request.
	FBCCapable bool
	Mode       uint32
	Color      mpp.ColorInfo
}

type queuedPacket struct {
	num      int
	pts, dts int64
	eos      bool
}

type queuedFrame struct {
	buf      mpp.Buffer
	pts, dts int64
	eos      bool
}

// Submitted records a frame handed to the fake encoder.
type Submitted struct {
	Width, Height        int
	HorStride, VerStride int
	Format               pixfmt.EngineFormat
	PTS, DTS             int64
	Fd                   int
}

// Engine simulates one engine context.
type Engine struct {
	mu sync.Mutex

	Stream Stream
	// InputCapacity bounds queued packets or frames. Defaults to 4.
	InputCapacity int
	// Fill is called with every decoded frame after its buffer is assigned.
	Fill func(num int, frame *mpp.Frame)
	// DiscardPackets lists 1-based packet numbers decoded as discard frames.
	DiscardPackets map[int]bool
	// ResignalInfoChange makes Reset re-arm the info change.
	ResignalInfoChange bool
	// InfoChangeBefore re-signals an info change before decoding that 1-based packet number.
	InfoChangeBefore int
	// OmitIntraMeta drops the intra flag from encoded packets.
	OmitIntraMeta bool
	// Unsupported makes CheckSupport fail.
	Unsupported bool
	// FailInit makes Init fail.
	FailInit error

	ctx       mpp.CtxType
	coding    mpp.CodingType
	inited    bool
	destroyed bool
	fbc       bool
	fastMode  bool
	noError   bool
	group     mpp.BufferGroup
	groups    []*Group
	resets    int

	packets   []queuedPacket
	received  int
	infoSent  bool
	infoReady bool
	reinfo    bool
	decoded   int

	cfg          *mpp.EncoderConfig
	cfgSets      int
	headerMode   mpp.HeaderMode
	inputTimeout time.Duration
	frames       []queuedFrame
	submitted    []Submitted
	encoded      int
	livePackets  atomic.Int32
}

// NewEngine returns a fake engine decoding stream.
func NewEngine(stream Stream) *Engine {
	return &Engine{Stream: stream}
}

func (e *Engine) capacity() int {
	if e.InputCapacity > 0 {
		return e.InputCapacity
	}
	return 4
}

// CheckSupport implements mpp.Engine.
func (e *Engine) CheckSupport(ctx mpp.CtxType, coding mpp.CodingType) error {
	if e.Unsupported || coding == mpp.CodingUnused {
		return errors.Wrapf(mpp.ErrNotSupported, "%s %s", coding, ctx)
	}
	return nil
}

// Init implements mpp.Engine.
func (e *Engine) Init(ctx mpp.CtxType, coding mpp.CodingType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailInit != nil {
		return e.FailInit
	}
	if e.destroyed {
		return errors.New("fake engine: init after destroy")
	}
	e.ctx, e.coding, e.inited = ctx, coding, true
	return nil
}

// Reset implements mpp.Engine.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	e.packets = nil
	for _, f := range e.frames {
		if f.buf != nil {
			_ = f.buf.Release()
		}
	}
	e.frames = nil
	if e.ResignalInfoChange {
		e.infoSent, e.infoReady = false, false
	}
	return nil
}

// Destroy implements mpp.Engine.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errors.New("fake engine: destroyed twice")
	}
	for _, f := range e.frames {
		if f.buf != nil {
			_ = f.buf.Release()
		}
	}
	e.frames, e.packets = nil, nil
	e.destroyed, e.inited = true, false
	return nil
}

// SetParserFastMode implements mpp.Engine.
func (e *Engine) SetParserFastMode(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fastMode = enabled
	return nil
}

// SetDisableError implements mpp.Engine.
func (e *Engine) SetDisableError(disabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noError = disabled
	return nil
}

// SetOutputFormat implements mpp.Engine.
func (e *Engine) SetOutputFormat(format pixfmt.EngineFormat) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fbc = format.IsFBC() && e.Stream.FBCCapable
	return nil
}

// SetExternalBufferGroup implements mpp.Engine.
func (e *Engine) SetExternalBufferGroup(group mpp.BufferGroup) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.group = group
	return nil
}

// SetInfoChangeReady implements mpp.Engine.
func (e *Engine) SetInfoChangeReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.infoSent {
		return errors.New("fake engine: info change ready without info change")
	}
	e.infoReady = true
	return nil
}

// DecodePutPacket implements mpp.Engine.
func (e *Engine) DecodePutPacket(pkt *mpp.Packet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return errors.New("fake engine: not initialized")
	}
	if len(e.packets) >= e.capacity() {
		return mpp.ErrBufferFull
	}
	q := queuedPacket{pts: pkt.PTS, dts: pkt.DTS, eos: pkt.EOS}
	if !pkt.EOS {
		e.received++
		q.num = e.received
	}
	e.packets = append(e.packets, q)
	return nil
}

// layout is the linear layout of decoded frames.
func (e *Engine) layout() pixfmt.Layout {
	f, _ := pixfmt.ByEngine(e.Stream.Format)
	return f.Layout(pixfmt.Geometry{
		Width: e.Stream.Width, Height: e.Stream.Height, Align: pixfmt.StrideAlign,
		HStride: e.Stream.HorStride, VStride: e.Stream.VerStride,
	})
}

func (e *Engine) header() *mpp.Frame {
	l := e.layout()
	f := &mpp.Frame{
		Width:     e.Stream.Width,
		Height:    e.Stream.Height,
		HorStride: l.HStride,
		VerStride: l.VStride,
		Format:    e.Stream.Format,
		BufSize:   l.Size,
		Mode:      e.Stream.Mode,
		Color:     e.Stream.Color,
	}
	if e.fbc {
		f.Format |= pixfmt.EngineFBCAFBCV2
		f.FBCHdrStride = utils.AlignUp(e.Stream.Width, pixfmt.DRMStrideAlign)
		f.BufSize = l.Size + l.Size/16
	}
	return f
}

// DecodeGetFrame implements mpp.Engine.
func (e *Engine) DecodeGetFrame(timeout time.Duration) (*mpp.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return nil, errors.New("fake engine: not initialized")
	}
	if len(e.packets) == 0 {
		return nil, nil
	}
	if !e.infoSent {
		e.infoSent, e.infoReady = true, false
		f := e.header()
		f.InfoChange = true
		return f, nil
	}
	if !e.infoReady {
		return nil, nil
	}

	p := e.packets[0]
	if e.InfoChangeBefore > 0 && p.num == e.InfoChangeBefore && !e.reinfo {
		e.reinfo, e.infoReady = true, false
		f := e.header()
		f.InfoChange = true
		return f, nil
	}
	if p.eos {
		e.packets = e.packets[1:]
		return &mpp.Frame{EOS: true}, nil
	}
	if e.DiscardPackets[p.num] {
		e.packets = e.packets[1:]
		return &mpp.Frame{Discard: true, PTS: p.pts}, nil
	}
	if e.group == nil {
		return nil, errors.New("fake engine: no external buffer group")
	}
	f := e.header()
	buf, err := e.group.Get(f.BufSize)
	if err != nil {
		return nil, nil
	}
	e.packets = e.packets[1:]
	e.decoded++
	f.Buffer = buf
	f.PTS, f.DTS = p.pts, p.dts
	if e.Fill != nil {
		e.Fill(e.decoded, f)
	}
	return f, nil
}

// NewExternalGroup implements mpp.Engine.
func (e *Engine) NewExternalGroup() (mpp.BufferGroup, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := NewGroup()
	e.groups = append(e.groups, g)
	return g, nil
}

// ImportBuffer implements mpp.Engine. The buffer has no CPU mapping.
func (e *Engine) ImportBuffer(fd, size int) (mpp.Buffer, error) {
	if fd < 0 || size <= 0 {
		return nil, errors.Errorf("fake engine: cannot import fd %d of %d bytes", fd, size)
	}
	return NewImported(fd, size, nil), nil
}

// Groups returns every group created so far.
func (e *Engine) Groups() []*Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Group(nil), e.groups...)
}

// Resets is the number of Reset calls.
func (e *Engine) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resets
}

// Destroyed reports whether Destroy was called.
func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Coding is the coding type the engine was initialized with.
func (e *Engine) Coding() mpp.CodingType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coding
}

// FBC reports whether the decoder emits AFBC frames.
func (e *Engine) FBC() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fbc
}

// DecoderFlags reports the parser fast mode and disable error settings.
func (e *Engine) DecoderFlags() (fastMode, disableError bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fastMode, e.noError
}

// QueuedPackets is the number of packets waiting to be decoded.
func (e *Engine) QueuedPackets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.packets)
}
