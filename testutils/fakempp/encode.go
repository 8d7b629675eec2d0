package fakempp

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/rkmpp/mpp"
)

var (
	startCode = []byte{0, 0, 0, 1}
	avcSPS    = []byte{0x67, 0x64, 0x00, 0x28, 0xac, 0xd9}
	avcPPS    = []byte{0x68, 0xeb, 0xe3, 0xcb}
	hevcVPS   = []byte{0x40, 0x01, 0x0c, 0x01}
	hevcSPS   = []byte{0x42, 0x01, 0x01, 0x01}
	hevcPPS   = []byte{0x44, 0x01, 0xc1, 0x72}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, startCode...)
		out = append(out, n...)
	}
	return out
}

func (e *Engine) parameterSets() []byte {
	switch e.coding {
	case mpp.CodingAVC:
		return annexB(avcSPS, avcPPS)
	case mpp.CodingHEVC:
		return annexB(hevcVPS, hevcSPS, hevcPPS)
	default:
		return nil
	}
}

func (e *Engine) picture(key bool, n int) []byte {
	switch e.coding {
	case mpp.CodingAVC:
		if key {
			return annexB([]byte{0x65, 0x88, byte(n)})
		}
		return annexB([]byte{0x41, 0x9a, byte(n)})
	case mpp.CodingHEVC:
		if key {
			return annexB([]byte{0x26, 0x01, byte(n)})
		}
		return annexB([]byte{0x02, 0x01, byte(n)})
	default:
		if key {
			return []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, byte(n)}
		}
		return []byte{0x11, 0x02, 0x00, byte(n)}
	}
}

// EncoderConfig implements mpp.Engine.
func (e *Engine) EncoderConfig() (*mpp.EncoderConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return nil, errors.New("fake engine: not initialized")
	}
	cfg := mpp.EncoderConfig{Codec: e.coding}
	if e.cfg != nil {
		cfg = *e.cfg
	}
	return &cfg, nil
}

// SetEncoderConfig implements mpp.Engine.
func (e *Engine) SetEncoderConfig(cfg *mpp.EncoderConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := *cfg
	e.cfg = &c
	e.cfgSets++
	return nil
}

// SetHeaderMode implements mpp.Engine.
func (e *Engine) SetHeaderMode(mode mpp.HeaderMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headerMode = mode
	return nil
}

// EncoderHeader implements mpp.Engine.
func (e *Engine) EncoderHeader(buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ps := e.parameterSets()
	if len(ps) > len(buf) {
		return 0, errors.Errorf("fake engine: header of %d bytes does not fit %d", len(ps), len(buf))
	}
	return copy(buf, ps), nil
}

// SetInputTimeout implements mpp.Engine.
func (e *Engine) SetInputTimeout(timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputTimeout = timeout
	return nil
}

// EncodePutFrame implements mpp.Engine.
func (e *Engine) EncodePutFrame(frame *mpp.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return errors.New("fake engine: not initialized")
	}
	if len(e.frames) >= e.capacity() {
		return mpp.ErrBufferFull
	}
	if frame.EOS {
		e.frames = append(e.frames, queuedFrame{eos: true})
		return nil
	}
	if frame.Buffer == nil {
		return errors.New("fake engine: frame without buffer")
	}
	frame.Buffer.Ref()
	e.frames = append(e.frames, queuedFrame{buf: frame.Buffer, pts: frame.PTS, dts: frame.DTS})
	e.submitted = append(e.submitted, Submitted{
		Width: frame.Width, Height: frame.Height,
		HorStride: frame.HorStride, VerStride: frame.VerStride,
		Format: frame.Format, PTS: frame.PTS, DTS: frame.DTS, Fd: frame.Buffer.Fd(),
	})
	return nil
}

// EncodeGetPacket implements mpp.Engine.
func (e *Engine) EncodeGetPacket(timeout time.Duration) (*mpp.Packet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frames) == 0 {
		return nil, nil
	}
	f := e.frames[0]
	e.frames = e.frames[1:]
	if f.eos {
		return &mpp.Packet{EOS: true}, nil
	}
	if err := f.buf.Release(); err != nil {
		return nil, err
	}

	gop := 1
	if e.cfg != nil && e.cfg.RC.GOP > 1 {
		gop = e.cfg.RC.GOP
	}
	n := e.encoded
	e.encoded++
	key := n%gop == 0

	var data []byte
	if key && e.headerMode == mpp.HeaderModeEachIDR {
		data = append(data, e.parameterSets()...)
	}
	data = append(data, e.picture(key, n)...)

	e.livePackets.Inc()
	pkt := mpp.NewPacket(data, func() { e.livePackets.Dec() })
	pkt.PTS, pkt.DTS = f.pts, f.dts
	if key && !e.OmitIntraMeta {
		pkt.Meta = map[mpp.MetaKey]int32{mpp.KeyOutputIntra: 1}
	}
	return pkt, nil
}

// AppliedConfig is the last configuration set, or nil.
func (e *Engine) AppliedConfig() *mpp.EncoderConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg == nil {
		return nil
	}
	c := *e.cfg
	return &c
}

// ConfigSets is the number of SetEncoderConfig calls.
func (e *Engine) ConfigSets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfgSets
}

// HeaderMode is the header mode set.
func (e *Engine) HeaderMode() mpp.HeaderMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.headerMode
}

// InputTimeout is the input timeout set.
func (e *Engine) InputTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputTimeout
}

// Submitted lists every frame handed to the encoder.
func (e *Engine) Submitted() []Submitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Submitted(nil), e.submitted...)
}

// LivePackets is the number of packets not deinitialized yet.
func (e *Engine) LivePackets() int {
	return int(e.livePackets.Load())
}
