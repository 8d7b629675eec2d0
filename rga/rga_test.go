package rga

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/pixfmt"
)

type stubFence struct {
	polls   int
	needed  int
	closed  bool
	waitErr error
}

func (f *stubFence) Wait(timeout time.Duration) (bool, error) {
	if f.waitErr != nil {
		return false, f.waitErr
	}
	f.polls++
	return f.polls >= f.needed || timeout < 0, nil
}

func (f *stubFence) Close() error {
	f.closed = true
	return nil
}

type stubDevice struct {
	blits  int
	err    error
	fences []*stubFence
}

func (d *stubDevice) Blit(src, dst Surface) (Fence, error) {
	d.blits++
	if d.err != nil {
		return nil, d.err
	}
	f := &stubFence{needed: 2}
	d.fences = append(d.fences, f)
	return f, nil
}

func (d *stubDevice) Close() error {
	return nil
}

func surface(t *testing.T, pix pixfmt.PixelFormat, width, height int) Surface {
	t.Helper()
	f, ok := pixfmt.ByPixel(pix)
	test.That(t, ok, test.ShouldBeTrue)
	l := f.Layout(pixfmt.Geometry{Width: width, Height: height, Align: pixfmt.StrideAlign})
	return Surface{Fd: 3, Mem: make([]byte, l.Total()), Layout: l}
}

func TestDriverUsesHardware(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dev := &stubDevice{}
	d := NewDriver(dev, false, clock.NewMock(), logger)

	job, err := d.Convert(surface(t, pixfmt.NV12, 1920, 1080), surface(t, pixfmt.NV16, 1920, 1080), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, job.Hardware(), test.ShouldBeTrue)
	test.That(t, dev.blits, test.ShouldEqual, 1)

	st, err := job.Poll(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, Pending)
	st, err = job.Poll(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, Signaled)

	test.That(t, job.Close(), test.ShouldBeNil)
	test.That(t, dev.fences[0].closed, test.ShouldBeTrue)
}

func TestDriverOutOfRangeGoesSoft(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dev := &stubDevice{}
	d := NewDriver(dev, false, clock.NewMock(), logger)

	src := surface(t, pixfmt.NV12, 64, 64)
	dst := surface(t, pixfmt.YUV420P, 64, 64)
	test.That(t, d.CanUseHardware(src, dst), test.ShouldBeFalse)
	job, err := d.Convert(src, dst, Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, job.Hardware(), test.ShouldBeFalse)
	test.That(t, dev.blits, test.ShouldEqual, 0)

	// Unknown raster tags never reach the hardware either.
	test.That(t, d.CanUseHardware(surface(t, pixfmt.NV24, 640, 480), surface(t, pixfmt.YUV444P, 640, 480)), test.ShouldBeFalse)
}

func TestDriverFallsBackAfterFailure(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	dev := &stubDevice{err: errors.New("ioctl failed")}
	d := NewDriver(dev, false, clock.NewMock(), logger)

	job, err := d.Convert(surface(t, pixfmt.NV16, 640, 480), surface(t, pixfmt.NV12, 640, 480), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, job.Hardware(), test.ShouldBeFalse)
	test.That(t, d.HardwareDisabled(), test.ShouldBeTrue)
	test.That(t, logs.FilterMessageSnippet("falling back").Len(), test.ShouldEqual, 1)

	_, err = d.Convert(surface(t, pixfmt.NV16, 640, 480), surface(t, pixfmt.NV12, 640, 480), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.blits, test.ShouldEqual, 1)
}

func TestDriverHardwareAndSoftBothFail(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dev := &stubDevice{err: errors.New("ioctl failed")}
	d := NewDriver(dev, false, clock.NewMock(), logger)

	_, err := d.Convert(surface(t, pixfmt.NV12, 640, 480), surface(t, pixfmt.BGR24, 640, 480), Options{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNoSoftPath), test.ShouldBeTrue)
}

func TestJobStuck(t *testing.T) {
	mock := clock.NewMock()
	job := newJob(&stubFence{needed: 1 << 30}, mock)

	st, err := job.Poll(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, Pending)

	mock.Add(StuckAfter + time.Millisecond)
	st, err = job.Poll(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, Stuck)

	st, err = job.Poll(-1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, Signaled)

	var nilJob *Job
	st, err = nilJob.Poll(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, Signaled)
	test.That(t, nilJob.Close(), test.ShouldBeNil)
}

func TestJobFenceError(t *testing.T) {
	job := newJob(&stubFence{waitErr: errors.New("bad fence")}, clock.NewMock())
	st, err := job.Poll(0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, st, test.ShouldEqual, Stuck)
}

func fill(s Surface, plane int, fn func(x, y int) byte) {
	p := s.Layout.Planes[plane]
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			s.Mem[p.Offset+y*p.HStride+x] = fn(x, y)
		}
	}
}

func TestSoftNV16ToYUV420P(t *testing.T) {
	src := surface(t, pixfmt.NV16, 640, 480)
	dst := surface(t, pixfmt.YUV420P, 640, 480)
	fill(src, 0, func(x, y int) byte { return byte(x + y) })
	fill(src, 1, func(x, y int) byte {
		if x%2 == 0 {
			return byte(2 * y)
		}
		return byte(255 - 2*y)
	})

	test.That(t, Soft(src, dst, false), test.ShouldBeNil)

	luma := dst.Layout.Planes[0]
	test.That(t, dst.Mem[luma.Offset+10*luma.HStride+7], test.ShouldEqual, byte(17))

	u, v := dst.Layout.Planes[1], dst.Layout.Planes[2]
	test.That(t, u.Height, test.ShouldEqual, 240)
	for _, y := range []int{0, 1, 100, 239} {
		for _, x := range []int{0, 5, 319} {
			u0, u1 := int(byte(2*(2*y))), int(byte(2*(2*y+1)))
			v0, v1 := int(byte(255-2*(2*y))), int(byte(255-2*(2*y+1)))
			test.That(t, dst.Mem[u.Offset+y*u.HStride+x], test.ShouldEqual, byte((u0+u1+1)>>1))
			test.That(t, dst.Mem[v.Offset+y*v.HStride+x], test.ShouldEqual, byte((v0+v1+1)>>1))
		}
	}
}

func TestSoftSharedLumaAndCopy(t *testing.T) {
	src := surface(t, pixfmt.NV12, 320, 240)
	dst := surface(t, pixfmt.YUV420P, 320, 240)
	fill(src, 0, func(x, y int) byte { return 9 })
	fill(src, 1, func(x, y int) byte { return byte(x % 2) })

	test.That(t, Soft(src, dst, true), test.ShouldBeNil)
	test.That(t, dst.Mem[0], test.ShouldEqual, byte(0))
	test.That(t, dst.Mem[dst.Layout.Planes[1].Offset], test.ShouldEqual, byte(0))
	test.That(t, dst.Mem[dst.Layout.Planes[2].Offset], test.ShouldEqual, byte(1))

	same := surface(t, pixfmt.NV12, 320, 240)
	test.That(t, Soft(src, same, false), test.ShouldBeNil)
	test.That(t, same.Mem, test.ShouldResemble, src.Mem)
}

func TestSoftRefusals(t *testing.T) {
	test.That(t, errors.Is(Soft(surface(t, pixfmt.NV12, 64, 64), surface(t, pixfmt.RGBA, 64, 64), false), ErrNoSoftPath),
		test.ShouldBeTrue)
	test.That(t, errors.Is(Soft(surface(t, pixfmt.NV12, 64, 64), surface(t, pixfmt.NV12, 32, 32), false), ErrNoSoftPath),
		test.ShouldBeTrue)

	fbc := surface(t, pixfmt.NV12, 64, 64)
	fbc.Layout.FBCStride = 64
	test.That(t, errors.Is(Soft(fbc, surface(t, pixfmt.YUV420P, 64, 64), false), ErrNoSoftPath), test.ShouldBeTrue)

	nv12, _ := pixfmt.ByPixel(pixfmt.NV12)
	yuv420p, _ := pixfmt.ByPixel(pixfmt.YUV420P)
	rgba, _ := pixfmt.ByPixel(pixfmt.RGBA)
	test.That(t, HasSoftPath(nv12, yuv420p), test.ShouldBeTrue)
	test.That(t, HasSoftPath(nv12, nv12), test.ShouldBeTrue)
	test.That(t, HasSoftPath(nv12, rgba), test.ShouldBeFalse)
}
