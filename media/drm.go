package media

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/rkmpp/pixfmt"
)

// DRM-PRIME descriptor limits.
const (
	MaxDRMObjects = 4
	MaxDRMLayers  = 4
	MaxDRMPlanes  = 4
)

// DRMObject is one DMA-BUF.
type DRMObject struct {
	Fd   int
	Size int
	// Modifier is the DRM format modifier. Zero means linear.
	Modifier uint64
}

// DRMPlane places one plane inside an object.
type DRMPlane struct {
	ObjectIndex int
	Offset      int
	Pitch       int
}

// DRMLayer is one image layer, normally the whole frame.
type DRMLayer struct {
	Format pixfmt.Fourcc
	Planes []DRMPlane
}

// DRMDescriptor describes a frame living in DMA-BUFs.
type DRMDescriptor struct {
	Objects []DRMObject
	Layers  []DRMLayer
}

// Validate checks the descriptor against the DRM-PRIME limits.
func (d *DRMDescriptor) Validate() error {
	if len(d.Objects) == 0 || len(d.Objects) > MaxDRMObjects {
		return errors.Errorf("drm descriptor has %d objects", len(d.Objects))
	}
	if len(d.Layers) == 0 || len(d.Layers) > MaxDRMLayers {
		return errors.Errorf("drm descriptor has %d layers", len(d.Layers))
	}
	for li, l := range d.Layers {
		if len(l.Planes) == 0 || len(l.Planes) > MaxDRMPlanes {
			return errors.Errorf("drm layer %d has %d planes", li, len(l.Planes))
		}
		for pi, p := range l.Planes {
			if p.ObjectIndex < 0 || p.ObjectIndex >= len(d.Objects) {
				return errors.Errorf("drm layer %d plane %d references object %d", li, pi, p.ObjectIndex)
			}
			if p.Offset < 0 || p.Offset >= d.Objects[p.ObjectIndex].Size {
				return errors.Errorf("drm layer %d plane %d offset %d outside object", li, pi, p.Offset)
			}
		}
	}
	return nil
}

// HWFramesContext is shared by every DRM-PRIME frame a decoder emits so consumers can map them
// back to the producing device.
type HWFramesContext struct {
	Format    pixfmt.PixelFormat
	SWFormat  pixfmt.PixelFormat
	Width     int
	Height    int
	refs      atomic.Int32
	onRelease func()
}

// NewHWFramesContext returns a context holding one reference. onRelease runs when the last
// reference drops and may be nil.
func NewHWFramesContext(sw pixfmt.PixelFormat, width, height int, onRelease func()) *HWFramesContext {
	c := &HWFramesContext{Format: pixfmt.DRMPrime, SWFormat: sw, Width: width, Height: height, onRelease: onRelease}
	c.refs.Store(1)
	return c
}

// Ref takes a reference and returns the context.
func (c *HWFramesContext) Ref() *HWFramesContext {
	c.refs.Inc()
	return c
}

// Unref drops a reference.
func (c *HWFramesContext) Unref() {
	if n := c.refs.Dec(); n == 0 && c.onRelease != nil {
		c.onRelease()
	}
}

// Refs is the current reference count.
func (c *HWFramesContext) Refs() int {
	return int(c.refs.Load())
}
