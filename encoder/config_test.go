package encoder

import (
	"testing"

	"github.com/pkg/errors"

	"go.viam.com/test"

	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
)

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func TestResolveSettings(t *testing.T) {
	for _, tc := range []struct {
		name   string
		coding mpp.CodingType
		opts   config.Options
		exp    settings
	}{
		{
			name:   "h264 defaults",
			coding: mpp.CodingAVC,
			exp: settings{
				rc: mpp.RCModeCBR, profile: config.ProfileH264High, level: defaultH264Level,
				cabac: true, trans8x8: true, qpMin: QPMinH26x, qpMax: QPMaxH26x,
			},
		},
		{
			name:   "baseline drops cabac and 8x8",
			coding: mpp.CodingAVC,
			opts:   config.Options{Profile: "baseline", Level: "3.1", RCMode: "vbr"},
			exp: settings{
				rc: mpp.RCModeVBR, profile: config.ProfileH264Baseline, level: 31,
				qpMin: QPMinH26x, qpMax: QPMaxH26x,
			},
		},
		{
			name:   "main keeps cabac only",
			coding: mpp.CodingAVC,
			opts:   config.Options{Profile: "main", DCT8x8: boolPtr(true)},
			exp: settings{
				rc: mpp.RCModeCBR, profile: config.ProfileH264Main, level: defaultH264Level,
				cabac: true, qpMin: QPMinH26x, qpMax: QPMaxH26x,
			},
		},
		{
			name:   "cavlc",
			coding: mpp.CodingAVC,
			opts:   config.Options{Coder: "cavlc", DCT8x8: boolPtr(false)},
			exp: settings{
				rc: mpp.RCModeCBR, profile: config.ProfileH264High, level: defaultH264Level,
				qpMin: QPMinH26x, qpMax: QPMaxH26x,
			},
		},
		{
			name:   "hevc main10",
			coding: mpp.CodingHEVC,
			opts:   config.Options{Profile: "main10", Level: "5.1", RCMode: "avbr"},
			exp: settings{
				rc: mpp.RCModeAVBR, profile: config.ProfileHEVCMain10, level: 153,
				qpMin: QPMinH26x, qpMax: QPMaxH26x,
			},
		},
		{
			name:   "vp8 quality range",
			coding: mpp.CodingVP8,
			opts:   config.Options{QualityMin: intPtr(0), QualityMax: intPtr(100)},
			exp:    settings{rc: mpp.RCModeCBR, qpMin: QPMinVP8, qpMax: QPMaxVP8},
		},
		{
			name:   "mjpeg",
			coding: mpp.CodingMJPEG,
			opts:   config.Options{QualityMin: intPtr(50)},
			exp:    settings{rc: mpp.RCModeCBR, qpMin: QFMinJPEG, qpMax: QFMaxJPEG},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := resolveSettings(tc.coding, tc.opts)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, s, test.ShouldResemble, tc.exp)
		})
	}
}

func TestResolveSettingsRejects(t *testing.T) {
	for _, tc := range []struct {
		name   string
		coding mpp.CodingType
		opts   config.Options
	}{
		{"rc mode", mpp.CodingAVC, config.Options{RCMode: "crf"}},
		{"hevc profile on h264", mpp.CodingAVC, config.Options{Profile: "main10"}},
		{"h264 level", mpp.CodingAVC, config.Options{Level: "7"}},
		{"coder", mpp.CodingAVC, config.Options{Coder: "huffman"}},
		{"decoder only codec", mpp.CodingVP9, config.Options{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveSettings(tc.coding, tc.opts)
			test.That(t, err, test.ShouldBeError)
			test.That(t, errors.Is(err, codec.ErrBadInput), test.ShouldBeTrue)
		})
	}
}

func TestQualityScalesQuantiser(t *testing.T) {
	s, err := resolveSettings(mpp.CodingAVC, config.Options{QualityMin: intPtr(50), QualityMax: intPtr(90)})
	test.That(t, err, test.ShouldBeNil)
	// 10 + 41*10/100 and 10 + 41*50/100
	test.That(t, s.qpMin, test.ShouldEqual, 14)
	test.That(t, s.qpMax, test.ShouldEqual, 30)
}

func TestFrameRates(t *testing.T) {
	in, out := frameRates(media.Rational{Num: 1, Den: 90000}, media.Rational{Num: 30, Den: 1})
	test.That(t, in, test.ShouldResemble, media.Rational{Num: 65535, Den: 1})
	test.That(t, out, test.ShouldResemble, media.Rational{Num: 30, Den: 1})

	in, out = frameRates(media.Rational{Num: 1001, Den: 30000}, media.Rational{})
	test.That(t, in, test.ShouldResemble, media.Rational{Num: 30000, Den: 1001})
	test.That(t, out, test.ShouldResemble, in)
}

func TestFixedQP(t *testing.T) {
	s, err := resolveSettings(mpp.CodingHEVC, config.Options{RCMode: "fixqp"})
	test.That(t, err, test.ShouldBeNil)
	f := &mpp.Frame{Width: 64, Height: 64, HorStride: 64, VerStride: 64, Format: pixfmt.EngineYUV420SP}
	var cfg mpp.EncoderConfig
	s.apply(&cfg, mpp.CodingHEVC, f, Params{
		TimeBase:      media.Rational{Num: 1, Den: 30},
		BitRate:       1_000_000,
		GlobalQuality: 5 * fixQPLambda,
	})
	test.That(t, cfg.RC.QPInit, test.ShouldEqual, 15)
	test.That(t, cfg.RC.QPMin, test.ShouldEqual, 15)
	test.That(t, cfg.RC.QPMaxI, test.ShouldEqual, 15)
	test.That(t, cfg.RC.QPIP, test.ShouldEqual, 0)
	test.That(t, cfg.RC.BpsMax, test.ShouldEqual, 0)
	test.That(t, cfg.RC.GOP, test.ShouldEqual, 1)
	test.That(t, cfg.H265.Profile, test.ShouldEqual, config.ProfileHEVCMain)
}

var startCode = []byte{0, 0, 0, 1}

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, startCode...)
		out = append(out, n...)
	}
	return out
}

func TestCountParameterSets(t *testing.T) {
	ps, err := CountParameterSets(mpp.CodingAVC, annexB(
		[]byte{0x67, 0x64, 0x00, 0x28}, []byte{0x68, 0xee, 0x3c, 0x80}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ps, test.ShouldResemble, ParameterSets{SPS: 1, PPS: 1})

	ps, err = CountParameterSets(mpp.CodingHEVC, annexB(
		[]byte{0x40, 0x01, 0x0c}, []byte{0x42, 0x01, 0x01}, []byte{0x44, 0x01, 0xc1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ps, test.ShouldResemble, ParameterSets{VPS: 1, SPS: 1, PPS: 1})

	ps, err = CountParameterSets(mpp.CodingVP8, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ps, test.ShouldResemble, ParameterSets{})

	_, err = CountParameterSets(mpp.CodingAVC, nil)
	test.That(t, err, test.ShouldBeError)
}

func TestIsKeyFrame(t *testing.T) {
	test.That(t, IsKeyFrame(mpp.CodingAVC, annexB([]byte{0x65, 0x88, 0x84})), test.ShouldBeTrue)
	test.That(t, IsKeyFrame(mpp.CodingAVC, annexB([]byte{0x41, 0x9a, 0x02})), test.ShouldBeFalse)
	test.That(t, IsKeyFrame(mpp.CodingAVC, []byte{0xff}), test.ShouldBeFalse)
	test.That(t, IsKeyFrame(mpp.CodingHEVC, annexB([]byte{0x26, 0x01, 0xaf})), test.ShouldBeTrue)
	test.That(t, IsKeyFrame(mpp.CodingHEVC, annexB([]byte{0x02, 0x01, 0xd0})), test.ShouldBeFalse)
	test.That(t, IsKeyFrame(mpp.CodingVP8, []byte{0x50, 0x2a}), test.ShouldBeTrue)
	test.That(t, IsKeyFrame(mpp.CodingVP8, []byte{0x51, 0x2a}), test.ShouldBeFalse)
	test.That(t, IsKeyFrame(mpp.CodingMJPEG, []byte{0xff, 0xd8}), test.ShouldBeTrue)
}

// cpuFrame builds a zeroed CPU frame laid out the way the encoder expects it.
func cpuFrame(p pixfmt.PixelFormat, w, h int) *media.Frame {
	f, _ := pixfmt.ByPixel(p)
	l := f.Layout(pixfmt.Geometry{Width: w, Height: h, Align: pixfmt.StrideAlign})
	frame := media.NewFrame()
	frame.Format = p
	frame.Width, frame.Height = w, h
	for _, pl := range l.Planes {
		frame.Data = append(frame.Data, make([]byte, pl.HStride*pl.Height))
		frame.Linesize = append(frame.Linesize, pl.HStride)
	}
	return frame
}

func TestPlanRoute(t *testing.T) {
	r, err := PlanRoute(mpp.CodingAVC, cpuFrame(pixfmt.NV12, 64, 64), config.Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Path, test.ShouldEqual, PathCopy)
	test.That(t, r.Convert, test.ShouldBeFalse)
	test.That(t, r.Out.Pixel, test.ShouldEqual, pixfmt.NV12)

	r, err = PlanRoute(mpp.CodingHEVC, cpuFrame(pixfmt.P010LE, 64, 64), config.Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Convert, test.ShouldBeTrue)
	test.That(t, r.In.Pixel, test.ShouldEqual, pixfmt.P010LE)
	test.That(t, r.Out.Pixel, test.ShouldEqual, pixfmt.NV12)

	r, err = PlanRoute(mpp.CodingVP8, cpuFrame(pixfmt.NV16, 64, 64), config.Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Convert, test.ShouldBeTrue)
	test.That(t, r.Out.Pixel, test.ShouldEqual, pixfmt.NV12)

	r, err = PlanRoute(mpp.CodingAVC, cpuFrame(pixfmt.NV16, 64, 64), config.Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Convert, test.ShouldBeFalse)

	r, err = PlanRoute(mpp.CodingAVC, cpuFrame(pixfmt.NV12, 64, 64), config.Options{Width: 8000, Height: 100})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Convert, test.ShouldBeTrue)
	test.That(t, r.Out.Width, test.ShouldEqual, config.MaxScaleDimension)
	test.That(t, r.Out.Height, test.ShouldEqual, config.MinScaleDimension)

	_, err = PlanRoute(mpp.CodingAVC, cpuFrame(pixfmt.YUV420P10LE, 64, 64), config.Options{})
	test.That(t, errors.Is(err, codec.ErrBadInput), test.ShouldBeTrue)

	_, err = PlanRoute(mpp.CodingAVC, cpuFrame(pixfmt.NV24, 64, 64), config.Options{})
	test.That(t, errors.Is(err, codec.ErrBadInput), test.ShouldBeTrue)

	short := cpuFrame(pixfmt.NV12, 64, 64)
	short.Data[1] = short.Data[1][:10]
	_, err = PlanRoute(mpp.CodingAVC, short, config.Options{})
	test.That(t, errors.Is(err, codec.ErrBadInput), test.ShouldBeTrue)
}

func TestPathString(t *testing.T) {
	test.That(t, PathAdopt.String(), test.ShouldEqual, "adopt")
	test.That(t, PathImport.String(), test.ShouldEqual, "import")
	test.That(t, PathCopy.String(), test.ShouldEqual, "copy")
}
