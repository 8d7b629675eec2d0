package codec

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/testutils/fakempp"
)

func noEnv(string) (string, bool) { return "", false }

func TestWrapMatchesBothErrors(t *testing.T) {
	cause := errors.New("ioctl failed")
	err := Wrap(ErrResource, cause, "pool %s", "decode")
	test.That(t, errors.Is(err, ErrResource), test.ShouldBeTrue)
	test.That(t, errors.Is(err, cause), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldEqual, "pool decode: resource failure: ioctl failed")
	test.That(t, Wrap(ErrResource, nil, "x"), test.ShouldBeNil)

	test.That(t, KindOf(err), test.ShouldEqual, ErrResource)
	test.That(t, KindOf(cause), test.ShouldEqual, ErrFatal)
	test.That(t, KindOf(nil), test.ShouldBeNil)
	test.That(t, IsControl(Errorf(ErrAgain, "fifo full")), test.ShouldBeTrue)
	test.That(t, IsControl(ErrEOF), test.ShouldBeTrue)
	test.That(t, IsControl(err), test.ShouldBeFalse)
}

func TestRegistry(t *testing.T) {
	test.That(t, Decoders(), test.ShouldHaveLength, 9)
	test.That(t, Encoders(), test.ShouldHaveLength, 3)

	e, err := Find(IDH264, KindDecoder)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Name, test.ShouldEqual, "h264_rkmpp_decoder")
	test.That(t, e.BSF, test.ShouldEqual, "h264_mp4toannexb")
	test.That(t, e.Accepts(pixfmt.DRMPrime), test.ShouldBeTrue)
	test.That(t, e.Accepts(pixfmt.NV20), test.ShouldBeFalse)

	e, err = ByName("hevc_rkmpp_encoder")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Coding(), test.ShouldEqual, mpp.CodingHEVC)
	test.That(t, e.Accepts(pixfmt.NV20), test.ShouldBeTrue)

	test.That(t, IDMPEG1.Coding(), test.ShouldEqual, mpp.CodingMPEG2)
	test.That(t, IDMPEG2.Coding(), test.ShouldEqual, mpp.CodingMPEG2)

	_, err = Find(IDAV1, KindEncoder)
	test.That(t, errors.Is(err, ErrBadInput), test.ShouldBeTrue)
	_, err = ParseID("mjpeg")
	test.That(t, errors.Is(err, ErrBadInput), test.ShouldBeTrue)
	id, err := ParseID("vp9")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, IDVP9)
}

func TestBaseLifecycle(t *testing.T) {
	entry, _ := Find(IDH264, KindDecoder)
	engine := fakempp.NewEngine(fakempp.Stream{})
	heap := fakempp.NewHeap()
	raster := fakempp.NewRaster()

	b, err := NewBase(entry, Deps{Engine: engine, Heap: heap, Raster: raster, Lookup: noEnv},
		config.Options{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Inited(), test.ShouldBeTrue)
	test.That(t, engine.Coding(), test.ShouldEqual, mpp.CodingAVC)
	test.That(t, b.Driver.HardwareDisabled(), test.ShouldBeFalse)
	test.That(t, b.FPS, test.ShouldBeNil)

	test.That(t, b.Close(), test.ShouldBeNil)
	test.That(t, b.Close(), test.ShouldBeNil)
	test.That(t, engine.Destroyed(), test.ShouldBeTrue)
	test.That(t, heap.Closed(), test.ShouldBeTrue)
}

func TestBaseEnvSwitches(t *testing.T) {
	entry, _ := Find(IDVP9, KindDecoder)
	lookup := func(k string) (string, bool) {
		v, ok := map[string]string{"RKMPP_NORGA": "1", "RKMPP_LOG_FPS": "1", "RKMPP_TIMING": "1"}[k]
		return v, ok
	}
	b, err := NewBase(entry, Deps{Engine: fakempp.NewEngine(fakempp.Stream{}), Heap: fakempp.NewHeap(),
		Raster: fakempp.NewRaster(), Lookup: lookup}, config.Options{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Driver.HardwareDisabled(), test.ShouldBeTrue)
	test.That(t, b.FPS, test.ShouldNotBeNil)
	test.That(t, b.Timing, test.ShouldNotBeNil)
	test.That(t, b.Close(), test.ShouldBeNil)
}

func TestBaseInitFailures(t *testing.T) {
	entry, _ := Find(IDH264, KindDecoder)
	logger := logging.NewTestLogger(t)

	engine := fakempp.NewEngine(fakempp.Stream{})
	engine.FailInit = errors.New("no device")
	heap := fakempp.NewHeap()
	_, err := NewBase(entry, Deps{Engine: engine, Heap: heap, Lookup: noEnv}, config.Options{}, logger)
	test.That(t, errors.Is(err, ErrFatal), test.ShouldBeTrue)
	test.That(t, heap.Closed(), test.ShouldBeTrue)
	test.That(t, engine.Destroyed(), test.ShouldBeFalse)

	engine = fakempp.NewEngine(fakempp.Stream{})
	engine.Unsupported = true
	_, err = NewBase(entry, Deps{Engine: engine, Heap: fakempp.NewHeap(), Lookup: noEnv}, config.Options{}, logger)
	test.That(t, errors.Is(err, ErrBadInput), test.ShouldBeTrue)

	badEnv := func(k string) (string, bool) { return "12", k == "RKMPP_DRMHDRBITS" }
	_, err = NewBase(entry, Deps{Engine: fakempp.NewEngine(fakempp.Stream{}), Heap: fakempp.NewHeap(), Lookup: badEnv},
		config.Options{}, logger)
	test.That(t, errors.Is(err, ErrBadInput), test.ShouldBeTrue)
	test.That(t, errors.Is(err, config.ErrInvalid), test.ShouldBeTrue)

	_, err = NewBase(entry, Deps{Engine: fakempp.NewEngine(fakempp.Stream{}), Heap: fakempp.NewHeap(), Lookup: noEnv},
		config.Options{Width: 4097, Height: 720}, logger)
	test.That(t, errors.Is(err, ErrBadInput), test.ShouldBeTrue)

	_, err = NewBase(entry, Deps{Heap: fakempp.NewHeap()}, config.Options{}, logger)
	test.That(t, errors.Is(err, ErrBadInput), test.ShouldBeTrue)
}

func TestFPSTracker(t *testing.T) {
	clk := clock.NewMock()
	logger, logs := logging.NewObservedTestLogger(t)
	tr := NewFPSTracker(clk, logger)

	snap := tr.Tick()
	test.That(t, snap.Frames, test.ShouldEqual, uint64(1))
	test.That(t, snap.FPS, test.ShouldEqual, 0.)

	for i := 0; i < 40; i++ {
		clk.Add(40 * time.Millisecond)
		snap = tr.Tick()
	}
	test.That(t, snap.Frames, test.ShouldEqual, uint64(41))
	test.That(t, snap.FPS, test.ShouldAlmostEqual, 25.0, 0.001)
	test.That(t, snap.MeanLatency, test.ShouldEqual, 40*time.Millisecond)
	test.That(t, len(tr.intervals), test.ShouldEqual, FPSWindow)
	test.That(t, logs.FilterMessage("throughput").Len(), test.ShouldEqual, 40)

	tr.Reset()
	test.That(t, tr.Tick().Frames, test.ShouldEqual, uint64(1))
}

func TestTimingRow(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	l := NewTimingLog(logger)
	decoded := time.Unix(1, 500)
	output := time.Unix(2, 0)

	test.That(t, l.Row(3, time.Time{}, decoded, output), test.ShouldEqual, "3,1000000500,2000000000")
	test.That(t, l.Row(4, time.Unix(0, 7), decoded, output), test.ShouldEqual, "4,7,1000000500,2000000000")
	test.That(t, logs.Len(), test.ShouldEqual, 2)
}
