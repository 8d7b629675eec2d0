package yuv

import (
	"encoding/binary"
	"testing"

	"go.viam.com/test"
)

func TestCopyPlane(t *testing.T) {
	src := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	dst := make([]byte, 6)
	CopyPlane(src, 4, dst, 3, 3, 2)
	test.That(t, dst, test.ShouldResemble, []byte{1, 2, 3, 4, 5, 6})

	packed := make([]byte, 6)
	CopyPlane(dst, 3, packed, 3, 3, 2)
	test.That(t, packed, test.ShouldResemble, dst)
}

func TestSplitUV(t *testing.T) {
	src := []byte{
		10, 20, 11, 21, 0, 0,
		12, 22, 13, 23, 0, 0,
	}
	u := make([]byte, 4)
	v := make([]byte, 4)
	SplitUV(src, 6, u, 2, v, 2, 2, 2)
	test.That(t, u, test.ShouldResemble, []byte{10, 11, 12, 13})
	test.That(t, v, test.ShouldResemble, []byte{20, 21, 22, 23})
}

func TestSplitUV16(t *testing.T) {
	src := make([]byte, 8)
	binary.LittleEndian.PutUint16(src[0:], 0x3ff)
	binary.LittleEndian.PutUint16(src[2:], 0x001)
	binary.LittleEndian.PutUint16(src[4:], 0x200)
	binary.LittleEndian.PutUint16(src[6:], 0x100)
	u := make([]byte, 4)
	v := make([]byte, 4)
	SplitUV16(src, 8, u, 4, v, 4, 2, 1)
	test.That(t, binary.LittleEndian.Uint16(u[0:]), test.ShouldEqual, uint16(0x3ff))
	test.That(t, binary.LittleEndian.Uint16(u[2:]), test.ShouldEqual, uint16(0x200))
	test.That(t, binary.LittleEndian.Uint16(v[0:]), test.ShouldEqual, uint16(0x001))
	test.That(t, binary.LittleEndian.Uint16(v[2:]), test.ShouldEqual, uint16(0x100))
}

func TestScaleUVHalfVertical(t *testing.T) {
	src := []byte{
		10, 20,
		11, 30,
		100, 200,
	}
	dst := make([]byte, 4)
	ScaleUVHalfVertical(src, 2, dst, 2, 1, 3)
	test.That(t, dst, test.ShouldResemble, []byte{11, 25, 100, 200})
	test.That(t, HalfRows(3), test.ShouldEqual, 2)
	test.That(t, HalfRows(480), test.ShouldEqual, 240)
}

func TestSplitUVHalfVerticalMatchesTwoPasses(t *testing.T) {
	const width, height, stride = 8, 6, 20
	src := make([]byte, stride*height)
	for i := range src {
		src[i] = byte(i * 7)
	}

	scaled := make([]byte, 2*width*HalfRows(height))
	ScaleUVHalfVertical(src, stride, scaled, 2*width, width, height)
	wantU := make([]byte, width*HalfRows(height))
	wantV := make([]byte, width*HalfRows(height))
	SplitUV(scaled, 2*width, wantU, width, wantV, width, width, HalfRows(height))

	u := make([]byte, width*HalfRows(height))
	v := make([]byte, width*HalfRows(height))
	SplitUVHalfVertical(src, stride, u, width, v, width, width, height)
	test.That(t, u, test.ShouldResemble, wantU)
	test.That(t, v, test.ShouldResemble, wantV)
}
