package pipeline

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/testutils/fakempp"
)

func newGroup(t *testing.T, size, count int) *fakempp.Group {
	t.Helper()
	g := fakempp.NewGroup()
	for i := 0; i < count; i++ {
		test.That(t, g.Commit(mpp.BufferInfo{Index: i, Fd: 3, Size: size, Mem: make([]byte, size)}), test.ShouldBeNil)
	}
	return g
}

func nv12(t *testing.T, w, h int) pixfmt.Layout {
	t.Helper()
	f, ok := pixfmt.ByPixel(pixfmt.NV12)
	test.That(t, ok, test.ShouldBeTrue)
	return f.Layout(pixfmt.Geometry{Width: w, Height: h, Align: pixfmt.StrideAlign})
}

func TestFifo(t *testing.T) {
	f := NewFifo(2)
	test.That(t, f.Empty(), test.ShouldBeTrue)
	test.That(t, f.Head(), test.ShouldBeNil)
	_, err := f.Pop()
	test.That(t, errors.Is(err, ErrEmpty), test.ShouldBeTrue)

	a, b, c := &Item{Num: 1}, &Item{Num: 2}, &Item{Num: 3}
	test.That(t, f.Push(a), test.ShouldBeNil)
	test.That(t, f.Push(b), test.ShouldBeNil)
	test.That(t, f.Full(), test.ShouldBeTrue)
	test.That(t, errors.Is(f.Push(c), ErrFull), test.ShouldBeTrue)
	test.That(t, f.Head(), test.ShouldEqual, a)
	test.That(t, f.Tail(), test.ShouldEqual, b)

	it, err := f.Pop()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, it, test.ShouldEqual, a)
	test.That(t, f.Push(c), test.ShouldBeNil)
	test.That(t, f.Tail(), test.ShouldEqual, c)

	// The ring wrapped; resizing keeps the order.
	test.That(t, f.Resize(1), test.ShouldBeError)
	test.That(t, f.Resize(4), test.ShouldBeNil)
	test.That(t, f.Cap(), test.ShouldEqual, 4)
	test.That(t, f.Push(a), test.ShouldBeNil)

	var order []uint64
	f.Drain(func(it *Item) { order = append(order, it.Num) })
	test.That(t, order, test.ShouldResemble, []uint64{2, 3, 1})
	test.That(t, f.Len(), test.ShouldEqual, 0)

	test.That(t, NewFifo(0).Cap(), test.ShouldEqual, 1)
}

func TestNewFrame(t *testing.T) {
	l := nv12(t, 64, 48)
	g := newGroup(t, l.Total(), 1)

	frame, err := NewFrame(g, l)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Width, test.ShouldEqual, 64)
	test.That(t, frame.Height, test.ShouldEqual, 48)
	test.That(t, frame.HorStride, test.ShouldEqual, 64)
	test.That(t, frame.VerStride, test.ShouldEqual, 48)
	test.That(t, frame.Format, test.ShouldEqual, pixfmt.EngineYUV420SP)
	test.That(t, frame.BufSize, test.ShouldEqual, l.Total())
	test.That(t, g.InUse(), test.ShouldEqual, 1)

	_, err = NewFrame(g, l)
	test.That(t, errors.Is(err, mpp.ErrNoBuffer), test.ShouldBeTrue)

	test.That(t, frame.Deinit(), test.ShouldBeNil)
	test.That(t, frame.Deinit(), test.ShouldBeNil)
	test.That(t, g.Unused(), test.ShouldEqual, 1)

	l.FBCStride = 64
	frame, err = NewFrame(g, l)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Format.IsFBC(), test.ShouldBeTrue)
	test.That(t, frame.FBCHdrStride, test.ShouldEqual, 64)
	test.That(t, frame.Deinit(), test.ShouldBeNil)
}

type smallSource struct {
	buf mpp.Buffer
}

func (s smallSource) Get(size int) (mpp.Buffer, error) {
	return s.buf, nil
}

func TestNewFrameRejectsShortBuffer(t *testing.T) {
	g := newGroup(t, 100, 1)
	buf, err := g.Get(100)
	test.That(t, err, test.ShouldBeNil)
	_, err = NewFrame(smallSource{buf}, nv12(t, 64, 64))
	test.That(t, err, test.ShouldBeError)
	test.That(t, g.Unused(), test.ShouldEqual, 1)
}

func TestItemReleaseIsRecursive(t *testing.T) {
	l := nv12(t, 32, 32)
	g := newGroup(t, l.Total(), 3)

	parent, err := NewItemFrom(g, l, 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parent.Stage(), test.ShouldEqual, StageRaw)
	test.That(t, parent.Surface().Fd, test.ShouldEqual, parent.Frame.Buffer.Fd())

	swap, err := NewItemFrom(g, l, 7)
	test.That(t, err, test.ShouldBeNil)
	out, err := NewItemFrom(g, l, 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, swap.Attach(StageConverted, out), test.ShouldBeNil)
	test.That(t, parent.Attach(StageSwapped, swap), test.ShouldBeNil)
	test.That(t, parent.Stage().String(), test.ShouldEqual, "swapped")
	test.That(t, g.InUse(), test.ShouldEqual, 3)

	test.That(t, parent.Release(), test.ShouldBeNil)
	test.That(t, g.InUse(), test.ShouldEqual, 0)
	test.That(t, parent.Child(), test.ShouldBeNil)
	test.That(t, parent.Release(), test.ShouldBeNil)
	test.That(t, (*Item)(nil).Release(), test.ShouldBeNil)
}

func TestItemAttachReplacesChild(t *testing.T) {
	l := nv12(t, 32, 32)
	g := newGroup(t, l.Total(), 3)
	parent, _ := NewItemFrom(g, l, 1)
	first, _ := NewItemFrom(g, l, 1)
	second, _ := NewItemFrom(g, l, 1)

	test.That(t, parent.Attach(StageConverted, first), test.ShouldBeNil)
	test.That(t, parent.Attach(StageConverted, second), test.ShouldBeNil)
	test.That(t, g.InUse(), test.ShouldEqual, 2)

	child := parent.Detach()
	test.That(t, child, test.ShouldEqual, second)
	test.That(t, parent.Stage(), test.ShouldEqual, StageRaw)
	test.That(t, child.Release(), test.ShouldBeNil)
	test.That(t, parent.Release(), test.ShouldBeNil)
	test.That(t, g.Unused(), test.ShouldEqual, 3)
}

func TestNewItem(t *testing.T) {
	now := time.Unix(10, 0)
	it := NewItem(&mpp.Frame{Width: 8}, pixfmt.Layout{}, 4, now)
	test.That(t, it.Num, test.ShouldEqual, 4)
	test.That(t, it.Stamp, test.ShouldResemble, now)
	test.That(t, it.Surface().Fd, test.ShouldEqual, -1)
	test.That(t, it.Release(), test.ShouldBeNil)
	test.That(t, it.Frame, test.ShouldBeNil)
}
