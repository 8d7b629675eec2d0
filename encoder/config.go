package encoder

import (
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/pkg/codecs/h265"
	"github.com/pkg/errors"

	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/utils"
)

// Quantiser bounds per codec.
const (
	QPMinH26x = 10
	QPMaxH26x = 51
	QPMinVP8  = 0
	QPMaxVP8  = 127
	QFMinJPEG = 1
	QFMaxJPEG = 99

	qpIPH26x      = 2
	qpIPVP8       = 6
	qpInitVP8     = 40
	qFactorJPEG   = 80
	fixQPLambda   = 118 << 2
	fpsTermMax    = 65535
	dropThreshold = 20
	dropGap       = 1

	defaultH264Level = 40
)

// settings are the option derived parts of the configuration, resolved once at init.
type settings struct {
	rc           mpp.RCMode
	profile      int
	level        int
	cabac        bool
	trans8x8     bool
	qpMin, qpMax int
}

func resolveSettings(coding mpp.CodingType, opts config.Options) (settings, error) {
	var s settings
	var err error
	if s.rc, err = opts.RateControl(); err != nil {
		return settings{}, codec.Wrap(codec.ErrBadInput, err, "rc_mode")
	}
	if s.profile, err = opts.ProfileFor(coding); err != nil {
		return settings{}, codec.Wrap(codec.ErrBadInput, err, "profile")
	}
	if s.level, err = opts.LevelFor(coding); err != nil {
		return settings{}, codec.Wrap(codec.ErrBadInput, err, "level")
	}

	switch coding {
	case mpp.CodingAVC:
		if s.profile == 0 {
			s.profile = config.ProfileH264High
		}
		if s.level == 0 {
			s.level = defaultH264Level
		}
		cabac, err := opts.Cabac()
		if err != nil {
			return settings{}, codec.Wrap(codec.ErrBadInput, err, "coder")
		}
		// Baseline has neither CABAC nor the 8x8 transform.
		s.cabac = cabac && s.profile != config.ProfileH264Baseline
		s.trans8x8 = opts.Transform8x8() && s.profile == config.ProfileH264High
		s.qpMin, s.qpMax = opts.QPRange(QPMinH26x, QPMaxH26x)
	case mpp.CodingHEVC:
		if s.profile == 0 {
			s.profile = config.ProfileHEVCMain
		}
		s.qpMin, s.qpMax = opts.QPRange(QPMinH26x, QPMaxH26x)
	case mpp.CodingVP8:
		s.qpMin, s.qpMax = opts.QPRange(QPMinVP8, QPMaxVP8)
	case mpp.CodingMJPEG:
		s.qpMin, s.qpMax = QFMinJPEG, QFMaxJPEG
	default:
		return settings{}, codec.Errorf(codec.ErrBadInput, "%s cannot be encoded", coding)
	}
	return s, nil
}

// frameRates returns the input rate, which is the inverse of the time base, and the output rate,
// which is the declared frame rate when there is one.
func frameRates(tb, fr media.Rational) (in, out media.Rational) {
	num, den := utils.ReduceRational(int64(tb.Den), int64(tb.Num), fpsTermMax)
	in = media.Rational{Num: int(num), Den: int(den)}
	out = in
	if fr.Valid() {
		num, den = utils.ReduceRational(int64(fr.Num), int64(fr.Den), fpsTermMax)
		out = media.Rational{Num: int(num), Den: int(den)}
	}
	return in, out
}

// apply fills cfg for frames shaped like f.
func (s settings) apply(cfg *mpp.EncoderConfig, coding mpp.CodingType, f *mpp.Frame, params Params) {
	cfg.Codec = coding
	cfg.Prep = mpp.PrepConfig{
		Width:     f.Width,
		Height:    f.Height,
		HorStride: f.HorStride,
		VerStride: f.VerStride,
		Format:    f.Format.Base(),
	}

	in, out := frameRates(params.TimeBase, params.FrameRate)
	rc := &cfg.RC
	rc.Mode = s.rc
	rc.FPSInFlex, rc.FPSInNum, rc.FPSInDen = 0, in.Num, in.Den
	rc.FPSOutFlex, rc.FPSOutNum, rc.FPSOutDen = 0, out.Num, out.Den
	rc.GOP = params.GOPSize
	if rc.GOP < 1 {
		rc.GOP = 1
	}

	rc.BpsTarget = params.BitRate
	switch s.rc {
	case mpp.RCModeFIXQP:
	case mpp.RCModeVBR, mpp.RCModeAVBR:
		rc.BpsMax = params.BitRate * 17 / 16
		rc.BpsMin = params.BitRate * 1 / 16
	default:
		rc.BpsMax = params.BitRate * 17 / 16
		rc.BpsMin = params.BitRate * 15 / 16
	}

	rc.DropMode = mpp.DropDisabled
	rc.DropThd = dropThreshold
	rc.DropGap = dropGap

	switch coding {
	case mpp.CodingAVC, mpp.CodingHEVC:
		if s.rc == mpp.RCModeFIXQP {
			qp := QPMinH26x + params.GlobalQuality/fixQPLambda
			rc.QPInit, rc.QPMax, rc.QPMin, rc.QPMaxI, rc.QPMinI, rc.QPIP = qp, qp, qp, qp, qp, 0
		} else {
			rc.QPInit, rc.QPMax, rc.QPMin, rc.QPMaxI, rc.QPMinI, rc.QPIP = -1, s.qpMax, s.qpMin, s.qpMax, s.qpMin, qpIPH26x
		}
	case mpp.CodingVP8:
		rc.QPInit, rc.QPMax, rc.QPMin, rc.QPMaxI, rc.QPMinI, rc.QPIP = qpInitVP8, s.qpMax, s.qpMin, s.qpMax, s.qpMin, qpIPVP8
	case mpp.CodingMJPEG:
		cfg.JPEG = mpp.JPEGConfig{QFactor: qFactorJPEG, QFMax: QFMaxJPEG, QFMin: QFMinJPEG}
	}

	switch coding {
	case mpp.CodingAVC:
		cfg.H264 = mpp.H264Config{
			Profile:  s.profile,
			Level:    s.level,
			CabacEn:  boolInt(s.cabac),
			CabacIdc: 0,
			Trans8x8: boolInt(s.trans8x8),
		}
	case mpp.CodingHEVC:
		cfg.H265 = mpp.H265Config{Profile: s.profile, Level: s.level}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ParameterSets counts the parameter set NAL units of an Annex-B header.
type ParameterSets struct {
	VPS, SPS, PPS int
}

// CountParameterSets splits an encoder header into NAL units and counts the parameter sets.
// Codecs without parameter sets report zero counts.
func CountParameterSets(coding mpp.CodingType, header []byte) (ParameterSets, error) {
	var ps ParameterSets
	if coding != mpp.CodingAVC && coding != mpp.CodingHEVC {
		return ps, nil
	}
	if len(header) == 0 {
		return ps, errors.Errorf("empty %s header", coding)
	}
	nalus, err := h264.AnnexBUnmarshal(header)
	if err != nil {
		return ps, errors.Wrapf(err, "split %s header", coding)
	}
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if coding == mpp.CodingAVC {
			switch h264.NALUType(nalu[0] & 0x1f) {
			case h264.NALUTypeSPS:
				ps.SPS++
			case h264.NALUTypePPS:
				ps.PPS++
			}
			continue
		}
		switch h265.NALUType((nalu[0] >> 1) & 0x3f) {
		case h265.NALUType_VPS_NUT:
			ps.VPS++
		case h265.NALUType_SPS_NUT:
			ps.SPS++
		case h265.NALUType_PPS_NUT:
			ps.PPS++
		}
	}
	return ps, nil
}

// IsKeyFrame inspects an encoded picture for a random access point.
func IsKeyFrame(coding mpp.CodingType, data []byte) bool {
	switch coding {
	case mpp.CodingAVC, mpp.CodingHEVC:
		au, err := h264.AnnexBUnmarshal(data)
		if err != nil {
			return false
		}
		if coding == mpp.CodingAVC {
			return h264.IDRPresent(au)
		}
		return h265.IsRandomAccess(au)
	case mpp.CodingVP8:
		// Bit 0 of the frame tag is clear on key frames.
		return len(data) > 0 && data[0]&0x01 == 0
	case mpp.CodingMJPEG:
		return true
	}
	return false
}
