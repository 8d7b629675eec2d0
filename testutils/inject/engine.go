// Package inject provides wrappers whose behaviour can be overridden per method, for driving
// codec error paths in tests.
package inject

import (
	"time"

	"go.viam.com/rkmpp/mpp"
)

// Engine is an injected video engine.
type Engine struct {
	mpp.Engine
	InitFunc             func(ctx mpp.CtxType, coding mpp.CodingType) error
	ResetFunc            func() error
	DecodePutPacketFunc  func(pkt *mpp.Packet) error
	DecodeGetFrameFunc   func(timeout time.Duration) (*mpp.Frame, error)
	SetEncoderConfigFunc func(cfg *mpp.EncoderConfig) error
	EncoderHeaderFunc    func(buf []byte) (int, error)
	EncodePutFrameFunc   func(frame *mpp.Frame) error
	EncodeGetPacketFunc  func(timeout time.Duration) (*mpp.Packet, error)
	ImportBufferFunc     func(fd, size int) (mpp.Buffer, error)
}

// NewEngine returns a new injected engine falling back to inner.
func NewEngine(inner mpp.Engine) *Engine {
	return &Engine{Engine: inner}
}

// Init calls the injected Init or the real version.
func (e *Engine) Init(ctx mpp.CtxType, coding mpp.CodingType) error {
	if e.InitFunc == nil {
		return e.Engine.Init(ctx, coding)
	}
	return e.InitFunc(ctx, coding)
}

// Reset calls the injected Reset or the real version.
func (e *Engine) Reset() error {
	if e.ResetFunc == nil {
		return e.Engine.Reset()
	}
	return e.ResetFunc()
}

// DecodePutPacket calls the injected DecodePutPacket or the real version.
func (e *Engine) DecodePutPacket(pkt *mpp.Packet) error {
	if e.DecodePutPacketFunc == nil {
		return e.Engine.DecodePutPacket(pkt)
	}
	return e.DecodePutPacketFunc(pkt)
}

// DecodeGetFrame calls the injected DecodeGetFrame or the real version.
func (e *Engine) DecodeGetFrame(timeout time.Duration) (*mpp.Frame, error) {
	if e.DecodeGetFrameFunc == nil {
		return e.Engine.DecodeGetFrame(timeout)
	}
	return e.DecodeGetFrameFunc(timeout)
}

// SetEncoderConfig calls the injected SetEncoderConfig or the real version.
func (e *Engine) SetEncoderConfig(cfg *mpp.EncoderConfig) error {
	if e.SetEncoderConfigFunc == nil {
		return e.Engine.SetEncoderConfig(cfg)
	}
	return e.SetEncoderConfigFunc(cfg)
}

// EncoderHeader calls the injected EncoderHeader or the real version.
func (e *Engine) EncoderHeader(buf []byte) (int, error) {
	if e.EncoderHeaderFunc == nil {
		return e.Engine.EncoderHeader(buf)
	}
	return e.EncoderHeaderFunc(buf)
}

// EncodePutFrame calls the injected EncodePutFrame or the real version.
func (e *Engine) EncodePutFrame(frame *mpp.Frame) error {
	if e.EncodePutFrameFunc == nil {
		return e.Engine.EncodePutFrame(frame)
	}
	return e.EncodePutFrameFunc(frame)
}

// EncodeGetPacket calls the injected EncodeGetPacket or the real version.
func (e *Engine) EncodeGetPacket(timeout time.Duration) (*mpp.Packet, error) {
	if e.EncodeGetPacketFunc == nil {
		return e.Engine.EncodeGetPacket(timeout)
	}
	return e.EncodeGetPacketFunc(timeout)
}

// ImportBuffer calls the injected ImportBuffer or the real version.
func (e *Engine) ImportBuffer(fd, size int) (mpp.Buffer, error) {
	if e.ImportBufferFunc == nil {
		return e.Engine.ImportBuffer(fd, size)
	}
	return e.ImportBufferFunc(fd, size)
}
