// Package mpp describes the surface of the vendor media process platform this module drives:
// the video engine context, its buffer groups and the frame and packet objects it exchanges.
// Bindings to the vendor library implement Engine; tests use an in-memory implementation.
package mpp

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// CodingType is the engine's codec identifier.
type CodingType uint32

// Coding types understood by the engine.
const (
	CodingUnused CodingType = 0
	CodingMPEG2  CodingType = 2
	CodingH263   CodingType = 3
	CodingMPEG4  CodingType = 4
	CodingAVC    CodingType = 7
	CodingMJPEG  CodingType = 8
	CodingVP8    CodingType = 9
	CodingVP9    CodingType = 10
	CodingHEVC   CodingType = 0x1000004
	CodingAV1    CodingType = 0x1000008
)

var codingNames = map[CodingType]string{
	CodingUnused: "unused",
	CodingMPEG2:  "mpeg2",
	CodingH263:   "h263",
	CodingMPEG4:  "mpeg4",
	CodingAVC:    "avc",
	CodingMJPEG:  "mjpeg",
	CodingVP8:    "vp8",
	CodingVP9:    "vp9",
	CodingHEVC:   "hevc",
	CodingAV1:    "av1",
}

func (c CodingType) String() string {
	if name, ok := codingNames[c]; ok {
		return name
	}
	return fmt.Sprintf("coding(%#x)", uint32(c))
}

// CtxType selects whether a context decodes or encodes.
type CtxType int

// Context types.
const (
	CtxDecoder CtxType = iota
	CtxEncoder
)

func (c CtxType) String() string {
	if c == CtxEncoder {
		return "encoder"
	}
	return "decoder"
}

// Timeouts accepted by the blocking engine calls.
const (
	NonBlock time.Duration = 0
	Block    time.Duration = -1
)

var (
	// ErrTimeout is returned when an output queue has nothing ready within the timeout.
	ErrTimeout = errors.New("mpp: timeout")
	// ErrBufferFull is returned when an input queue cannot take more work.
	ErrBufferFull = errors.New("mpp: buffer full")
	// ErrNotSupported is returned for coding types or controls the engine lacks.
	ErrNotSupported = errors.New("mpp: not supported")
	// ErrNoBuffer is returned when a buffer group has no free buffer of the requested size.
	ErrNoBuffer = errors.New("mpp: no free buffer")
)
