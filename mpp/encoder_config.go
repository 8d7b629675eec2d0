package mpp

import "go.viam.com/rkmpp/pixfmt"

// RCMode is the rate control mode.
type RCMode int

// Rate control modes.
const (
	RCModeVBR RCMode = iota
	RCModeCBR
	RCModeFIXQP
	RCModeAVBR
)

func (m RCMode) String() string {
	switch m {
	case RCModeVBR:
		return "vbr"
	case RCModeCBR:
		return "cbr"
	case RCModeFIXQP:
		return "fixqp"
	case RCModeAVBR:
		return "avbr"
	}
	return "unknown"
}

// DropMode decides what the rate controller does with frames over budget.
type DropMode int

// Drop modes.
const (
	DropDisabled DropMode = iota
	DropNormal
	DropPSkip
)

// HeaderMode decides when parameter sets are emitted.
type HeaderMode int

// Header modes.
const (
	HeaderModeDefault HeaderMode = iota
	HeaderModeEachIDR
)

// PrepConfig describes the frames fed to the encoder.
type PrepConfig struct {
	Width, Height        int
	HorStride, VerStride int
	Format               pixfmt.EngineFormat
	Mirroring            int
	Rotation             int
	Flip                 int
}

// RCConfig is the rate control section.
type RCConfig struct {
	Mode RCMode

	FPSInFlex  int
	FPSInNum   int
	FPSInDen   int
	FPSOutFlex int
	FPSOutNum  int
	FPSOutDen  int
	GOP        int

	BpsTarget int64
	BpsMax    int64
	BpsMin    int64

	DropMode DropMode
	DropThd  int
	DropGap  int

	QPInit int
	QPMax  int
	QPMin  int
	QPMaxI int
	QPMinI int
	QPIP   int
}

// H264Config is the H.264 specific section.
type H264Config struct {
	Profile  int
	Level    int
	CabacEn  int
	CabacIdc int
	Trans8x8 int
}

// H265Config is the HEVC specific section.
type H265Config struct {
	Profile int
	Level   int
}

// JPEGConfig is the MJPEG quality section.
type JPEGConfig struct {
	QFactor int
	QFMax   int
	QFMin   int
}

// EncoderConfig is the engine's encoder configuration blob.
type EncoderConfig struct {
	Prep  PrepConfig
	RC    RCConfig
	Codec CodingType
	H264  H264Config
	H265  H265Config
	JPEG  JPEGConfig
}
