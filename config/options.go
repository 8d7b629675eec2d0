package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/utils"
)

// Post-scale limits, shared with the raster hardware.
const (
	MinScaleDimension = 128
	MaxScaleDimension = 4096
)

// Options are the instance options. Zero values mean the codec default.
type Options struct {
	RCMode     string `json:"rc_mode"`
	QualityMin *int   `json:"quality_min"`
	QualityMax *int   `json:"quality_max"`
	// Width and Height request a post-scaled output.
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Profile string `json:"profile"`
	Level   string `json:"level"`
	Coder   string `json:"coder"`
	DCT8x8  *bool  `json:"8x8dct"`
}

// Decode decodes an option map. Unknown keys are rejected.
func Decode(attrs map[string]interface{}) (Options, error) {
	var opts Options
	if len(attrs) == 0 {
		return opts, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Options{}, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return Options{}, errors.Wrapf(ErrInvalid, "options: %v", err)
	}
	return opts, opts.Validate()
}

// Validate checks option domains that do not depend on the codec.
func (o Options) Validate() error {
	if o.Scaled() {
		for _, d := range []int{o.Width, o.Height} {
			if !utils.InRange(d, MinScaleDimension, MaxScaleDimension) {
				return errors.Wrapf(ErrInvalid, "post-scale %dx%d outside [%d, %d]",
					o.Width, o.Height, MinScaleDimension, MaxScaleDimension)
			}
		}
	}
	for _, q := range []*int{o.QualityMin, o.QualityMax} {
		if q != nil && !utils.InRange(*q, 0, 100) {
			return errors.Wrapf(ErrInvalid, "quality %d outside [0, 100]", *q)
		}
	}
	if o.QualityMin != nil && o.QualityMax != nil && *o.QualityMin > *o.QualityMax {
		return errors.Wrapf(ErrInvalid, "quality_min %d above quality_max %d", *o.QualityMin, *o.QualityMax)
	}
	if _, err := o.RateControl(); err != nil {
		return err
	}
	if o.Coder != "" {
		if _, err := o.Cabac(); err != nil {
			return err
		}
	}
	return nil
}

// Scaled reports whether a post-scale size was requested.
func (o Options) Scaled() bool {
	return o.Width != 0 || o.Height != 0
}

// RateControl resolves rc_mode. The default is CBR.
func (o Options) RateControl() (mpp.RCMode, error) {
	switch strings.ToLower(o.RCMode) {
	case "", "cbr":
		return mpp.RCModeCBR, nil
	case "vbr":
		return mpp.RCModeVBR, nil
	case "fixqp", "cqp":
		return mpp.RCModeFIXQP, nil
	case "avbr":
		return mpp.RCModeAVBR, nil
	}
	return 0, errors.Wrapf(ErrInvalid, "unknown rc_mode %q", o.RCMode)
}

// Cabac reports whether the H.264 entropy coder is CABAC. Unset means CABAC.
func (o Options) Cabac() (bool, error) {
	switch strings.ToLower(o.Coder) {
	case "", "cabac", "ac":
		return true, nil
	case "cavlc", "vlc":
		return false, nil
	}
	return false, errors.Wrapf(ErrInvalid, "unknown coder %q", o.Coder)
}

// Transform8x8 reports whether the H.264 8x8 transform is on. Unset means on.
func (o Options) Transform8x8() bool {
	return o.DCT8x8 == nil || *o.DCT8x8
}

// Profile tags.
const (
	ProfileH264Baseline = 66
	ProfileH264Main     = 77
	ProfileH264High     = 100
	ProfileHEVCMain     = 1
	ProfileHEVCMain10   = 2
)

var profiles = map[mpp.CodingType]map[string]int{
	mpp.CodingAVC: {
		"baseline":             ProfileH264Baseline,
		"constrained_baseline": ProfileH264Baseline,
		"main":                 ProfileH264Main,
		"high":                 ProfileH264High,
	},
	mpp.CodingHEVC: {
		"main":   ProfileHEVCMain,
		"main10": ProfileHEVCMain10,
	},
}

// ProfileFor resolves the profile option for coding. Zero means unset.
func (o Options) ProfileFor(coding mpp.CodingType) (int, error) {
	if o.Profile == "" {
		return 0, nil
	}
	if p, ok := profiles[coding][strings.ToLower(o.Profile)]; ok {
		return p, nil
	}
	return 0, errors.Wrapf(ErrInvalid, "profile %q is not valid for %s", o.Profile, coding)
}

var h264Levels = []int{10, 11, 12, 13, 20, 21, 22, 30, 31, 32, 40, 41, 42, 50, 51, 52, 60, 61, 62}

// LevelFor resolves the level option for coding into its bitstream tag: level*10 for H.264 and
// level*30 for HEVC. Zero means unset.
func (o Options) LevelFor(coding mpp.CodingType) (int, error) {
	if o.Level == "" {
		return 0, nil
	}
	f, err := cast.ToFloat64E(o.Level)
	if err != nil || f <= 0 {
		return 0, errors.Wrapf(ErrInvalid, "level %q is not a number", o.Level)
	}
	switch coding {
	case mpp.CodingAVC:
		tag := int(f*10 + 0.5)
		for _, l := range h264Levels {
			if l == tag {
				return tag, nil
			}
		}
	case mpp.CodingHEVC:
		tag := int(f*30 + 0.5)
		if tag%3 == 0 && tag >= 30 && tag <= 186 {
			return tag, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalid, "level %q is not valid for %s", o.Level, coding)
}

// QPRange maps quality_min/quality_max onto the [lo, hi] quantiser range of a codec. Higher
// quality means a lower quantiser.
func (o Options) QPRange(lo, hi int) (qpMin, qpMax int) {
	qpMin, qpMax = lo, hi
	scale := func(q int) int {
		return lo + (hi-lo)*(100-q)/100
	}
	if o.QualityMax != nil {
		qpMin = scale(*o.QualityMax)
	}
	if o.QualityMin != nil {
		qpMax = scale(*o.QualityMin)
	}
	return qpMin, qpMax
}
