package mpp

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type countingBuffer struct {
	releases int
}

func (b *countingBuffer) Fd() int       { return 5 }
func (b *countingBuffer) Size() int     { return 16 }
func (b *countingBuffer) Bytes() []byte { return make([]byte, 16) }
func (b *countingBuffer) Index() int    { return 0 }
func (b *countingBuffer) Ref()          {}
func (b *countingBuffer) Release() error {
	b.releases++
	if b.releases > 1 {
		return errors.New("released twice")
	}
	return nil
}

func TestFrameDeinitOnce(t *testing.T) {
	buf := &countingBuffer{}
	f := &Frame{Buffer: buf}
	test.That(t, f.Deinit(), test.ShouldBeNil)
	test.That(t, f.Deinit(), test.ShouldBeNil)
	test.That(t, buf.releases, test.ShouldEqual, 1)
	test.That(t, (*Frame)(nil).Deinit(), test.ShouldBeNil)
	test.That(t, (&Frame{}).Deinit(), test.ShouldBeNil)
}

func TestFrameFields(t *testing.T) {
	src := &Frame{PTS: 10, DTS: 9, Mode: ModeTopFirst, Color: ColorInfo{Range: 2, Primaries: 9, Transfer: 16, Space: 9}}
	var dst Frame
	dst.CopyProps(src)
	test.That(t, dst.PTS, test.ShouldEqual, 10)
	test.That(t, dst.DTS, test.ShouldEqual, 9)
	test.That(t, dst.Color, test.ShouldResemble, src.Color)
	test.That(t, dst.TopFieldFirst(), test.ShouldBeTrue)
	test.That(t, dst.Interlaced(), test.ShouldBeFalse)

	dst.Mode = ModeDeinterlaced
	test.That(t, dst.Interlaced(), test.ShouldBeTrue)
	test.That(t, dst.TopFieldFirst(), test.ShouldBeFalse)
}

func TestPacket(t *testing.T) {
	var released int
	p := NewPacket([]byte{1, 2}, func() { released++ })
	_, ok := p.MetaInt(KeyOutputIntra)
	test.That(t, ok, test.ShouldBeFalse)
	p.Meta = map[MetaKey]int32{KeyOutputIntra: 1}
	v, ok := p.MetaInt(KeyOutputIntra)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 1)

	p.Deinit()
	p.Deinit()
	test.That(t, released, test.ShouldEqual, 1)
	(*Packet)(nil).Deinit()
	NewPacket(nil, nil).Deinit()
}

func TestNames(t *testing.T) {
	test.That(t, CodingHEVC.String(), test.ShouldEqual, "hevc")
	test.That(t, CodingType(99).String(), test.ShouldEqual, "coding(0x63)")
	test.That(t, CtxEncoder.String(), test.ShouldEqual, "encoder")
	test.That(t, CtxDecoder.String(), test.ShouldEqual, "decoder")
}
