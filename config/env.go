// Package config holds the per-instance knobs of a codec: the options a caller passes at init
// and the environment switches, both read exactly once.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/utils"
)

// ErrInvalid is returned for option or environment values outside their domain.
var ErrInvalid = errors.New("invalid configuration")

// Environment switch names, without the prefix.
const (
	EnvLogFPS     = "LOG_FPS"
	EnvNoRGA      = "NORGA"
	EnvPixFmt     = "PIXFMT"
	EnvDRMHDRBits = "DRMHDRBITS"
	EnvAFBC       = "AFBC"
	EnvLibYUV     = "LIBYUV"
	EnvTiming     = "TIMING"
)

// Toggle is a switch that may be left to the codec's own policy.
type Toggle int

// Toggle values.
const (
	Auto Toggle = iota
	On
	Off
)

func (t Toggle) String() string {
	switch t {
	case On:
		return "on"
	case Off:
		return "off"
	default:
		return "auto"
	}
}

// AFBCMode is the tiled-compression policy.
type AFBCMode int

// AFBC policies. AFBCAuto lets the decoder pick per codec and size.
const (
	AFBCAuto AFBCMode = iota
	AFBCNone
	// AFBCDecoder asks the engine for compressed frames but converts them before delivery.
	AFBCDecoder
	// AFBCDRM delivers compressed frames as DRM-PRIME.
	AFBCDRM
)

var afbcNames = map[string]AFBCMode{
	"none":    AFBCNone,
	"decoder": AFBCDecoder,
	"drm":     AFBCDRM,
}

func (m AFBCMode) String() string {
	for name, v := range afbcNames {
		if v == m {
			return name
		}
	}
	return "auto"
}

// ParseAFBCMode resolves none, decoder or drm.
func ParseAFBCMode(name string) (AFBCMode, error) {
	mode, known := afbcNames[strings.ToLower(name)]
	if !known {
		return AFBCAuto, errors.Wrapf(ErrInvalid, "afbc mode must be none, decoder or drm, got %q", name)
	}
	return mode, nil
}

// Env is the snapshot of the environment switches.
type Env struct {
	LogFPS bool
	NoRGA  bool
	// PixFmt overrides the requested output format. None when unset.
	PixFmt pixfmt.PixelFormat
	// DRMHDRBits is 8, 10 or 16, or zero when unset.
	DRMHDRBits int
	AFBC       AFBCMode
	LibYUV     Toggle
	Timing     bool
}

// LoadEnv reads the switches through lookup. A nil lookup reads the process environment.
func LoadEnv(lookup utils.LookupFunc) (Env, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(utils.EnvName(name))
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var env Env
	var err error
	if env.LogFPS, err = envBool(get, EnvLogFPS); err != nil {
		return Env{}, err
	}
	if env.NoRGA, err = envBool(get, EnvNoRGA); err != nil {
		return Env{}, err
	}
	if env.Timing, err = envBool(get, EnvTiming); err != nil {
		return Env{}, err
	}

	if v, ok := get(EnvPixFmt); ok {
		p, err := pixfmt.ParsePixelFormat(v)
		if err != nil {
			return Env{}, errors.Wrapf(ErrInvalid, "%s: %v", utils.EnvName(EnvPixFmt), err)
		}
		env.PixFmt = p
	}

	if v, ok := get(EnvDRMHDRBits); ok {
		bits, err := cast.ToIntE(v)
		if err != nil || (bits != 8 && bits != 10 && bits != 16) {
			return Env{}, errors.Wrapf(ErrInvalid, "%s must be 8, 10 or 16, got %q", utils.EnvName(EnvDRMHDRBits), v)
		}
		env.DRMHDRBits = bits
	}

	if v, ok := get(EnvAFBC); ok {
		mode, err := ParseAFBCMode(v)
		if err != nil {
			return Env{}, errors.Wrap(err, utils.EnvName(EnvAFBC))
		}
		env.AFBC = mode
	}

	if _, ok := get(EnvLibYUV); ok {
		on, err := envBool(get, EnvLibYUV)
		if err != nil {
			return Env{}, err
		}
		env.LibYUV = Off
		if on {
			env.LibYUV = On
		}
	}
	return env, nil
}

func envBool(get func(string) (string, bool), name string) (bool, error) {
	v, ok := get(name)
	if !ok {
		return false, nil
	}
	if utils.IsEnvTrue(v) {
		return true, nil
	}
	if utils.IsEnvFalse(v) {
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, errors.Wrapf(ErrInvalid, "%s: %q is not a boolean", utils.EnvName(name), v)
	}
	return b, nil
}
