// Package binding turns a finished pipeline item into a framework frame, either by exporting its
// DMA-BUF as a DRM-PRIME descriptor or by exposing the mapped planes to the CPU.
package binding

import (
	"github.com/pkg/errors"

	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/pipeline"
	"go.viam.com/rkmpp/pixfmt"
)

// Source is the memory a published frame exposes.
type Source struct {
	// Item holds the delivered picture.
	Item *pipeline.Item
	// Luma, when set, supplies plane 0 instead of Item. Its layout must match Item's luma plane.
	Luma *pipeline.Item
	// Owner is released together with the output frame. It must own Item and Luma.
	Owner *pipeline.Item
}

func (s Source) validate() error {
	if s.Item == nil || s.Item.Frame == nil || s.Item.Frame.Buffer == nil {
		return errors.New("binding: source item has no buffer")
	}
	if s.Luma != nil && (s.Luma.Frame == nil || s.Luma.Frame.Buffer == nil) {
		return errors.New("binding: luma item has no buffer")
	}
	if s.Owner == nil {
		return errors.New("binding: source has no owner")
	}
	return nil
}

// newFrame copies the properties shared by both modes and pins the owner to the frame.
func newFrame(src Source) *media.Frame {
	ef := src.Item.Frame
	out := media.NewFrame()
	out.Width = src.Item.Layout.Width
	out.Height = src.Item.Layout.Height
	out.PTS = ef.PTS
	out.PktDTS = ef.DTS
	out.Color = ef.Color
	out.Interlaced = ef.Interlaced()
	out.TopFieldFirst = ef.TopFieldFirst()
	out.FrameNum = src.Item.Num
	out.BitsPerComponent = src.Item.Layout.Depth

	owner := src.Owner
	out.SetRelease(owner.Release)
	return out
}

// Export wraps the item's buffer in a DRM-PRIME descriptor. hw gains a reference that the frame
// drops on release.
func Export(src Source, hw *media.HWFramesContext) (*media.Frame, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if src.Luma != nil {
		return nil, errors.New("binding: cannot export a frame split across buffers")
	}
	l := src.Item.Layout
	buf := src.Item.Frame.Buffer
	if err := l.Validate(buf.Size()); err != nil {
		return nil, errors.Wrap(err, "binding: export")
	}

	obj := media.DRMObject{Fd: buf.Fd(), Size: buf.Size()}
	if l.Compressed() {
		obj.Modifier = pixfmt.ModifierAFBC16x16Sparse
	}
	layer := media.DRMLayer{Format: l.Fourcc()}
	for _, p := range l.Planes {
		layer.Planes = append(layer.Planes, media.DRMPlane{Offset: p.Offset, Pitch: p.HStride})
	}
	desc := &media.DRMDescriptor{Objects: []media.DRMObject{obj}, Layers: []media.DRMLayer{layer}}
	if err := desc.Validate(); err != nil {
		return nil, errors.Wrap(err, "binding: export")
	}

	out := newFrame(src)
	out.Format = pixfmt.DRMPrime
	out.DRM = desc
	out.Engine = src.Item.Frame
	if hw != nil {
		out.HWFrames = hw.Ref()
		owner := src.Owner
		out.SetRelease(func() error {
			defer hw.Unref()
			return owner.Release()
		})
	}
	return out, nil
}

// Map exposes the item's planes as CPU slices. With a Luma source, plane 0 and its pitch come from
// the luma item.
func Map(src Source) (*media.Frame, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	l := src.Item.Layout
	if l.Compressed() {
		return nil, errors.Errorf("binding: cannot map compressed %s frame", l.Pixel)
	}
	mem := src.Item.Frame.Buffer.Bytes()
	if mem == nil {
		return nil, errors.New("binding: buffer has no cpu mapping")
	}
	if err := l.Validate(len(mem)); err != nil {
		return nil, errors.Wrap(err, "binding: map")
	}

	out := newFrame(src)
	out.Format = l.Pixel
	out.Data = make([][]byte, len(l.Planes))
	out.Linesize = make([]int, len(l.Planes))
	for i, p := range l.Planes {
		out.Data[i] = mem[p.Offset:p.End():p.End()]
		out.Linesize[i] = p.HStride
	}

	if src.Luma != nil {
		ll := src.Luma.Layout
		lmem := src.Luma.Frame.Buffer.Bytes()
		if lmem == nil {
			return nil, errors.New("binding: luma buffer has no cpu mapping")
		}
		if ll.Planes[0].End() > len(lmem) {
			return nil, errors.Errorf("binding: luma plane ends at %d past buffer size %d", ll.Planes[0].End(), len(lmem))
		}
		if ll.Planes[0].Width < l.Planes[0].Width {
			return nil, errors.Errorf("binding: luma row %d narrower than %d", ll.Planes[0].Width, l.Planes[0].Width)
		}
		p := ll.Planes[0]
		out.Data[0] = lmem[p.Offset:p.End():p.End()]
		out.Linesize[0] = p.HStride
	} else {
		out.Engine = src.Item.Frame
	}
	return out, nil
}
