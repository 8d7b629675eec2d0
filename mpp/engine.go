package mpp

import (
	"time"

	"go.viam.com/rkmpp/pixfmt"
)

// Engine is one engine context. Calls are made from a single goroutine.
type Engine interface {
	// CheckSupport reports ErrNotSupported when the context type cannot handle the coding.
	CheckSupport(ctx CtxType, coding CodingType) error
	Init(ctx CtxType, coding CodingType) error
	// Reset discards queued input and in-flight output.
	Reset() error
	Destroy() error

	SetParserFastMode(enabled bool) error
	SetDisableError(disabled bool) error
	SetOutputFormat(format pixfmt.EngineFormat) error
	SetExternalBufferGroup(group BufferGroup) error
	SetInfoChangeReady() error
	// DecodePutPacket queues a packet, or returns ErrBufferFull.
	DecodePutPacket(pkt *Packet) error
	// DecodeGetFrame returns the next output frame. A nil frame with a nil error means nothing
	// was ready.
	DecodeGetFrame(timeout time.Duration) (*Frame, error)

	EncoderConfig() (*EncoderConfig, error)
	SetEncoderConfig(cfg *EncoderConfig) error
	SetHeaderMode(mode HeaderMode) error
	// EncoderHeader writes the current parameter sets into buf and returns their length.
	EncoderHeader(buf []byte) (int, error)
	SetInputTimeout(timeout time.Duration) error
	// EncodePutFrame queues a frame. The engine takes its own buffer reference.
	EncodePutFrame(frame *Frame) error
	// EncodeGetPacket returns the next packet. A nil packet with a nil error means nothing was
	// ready.
	EncodeGetPacket(timeout time.Duration) (*Packet, error)

	// NewExternalGroup creates an empty group for caller committed DMA buffers.
	NewExternalGroup() (BufferGroup, error)
	// ImportBuffer wraps a foreign DMA-BUF fd as an engine buffer.
	ImportBuffer(fd, size int) (Buffer, error)
}
