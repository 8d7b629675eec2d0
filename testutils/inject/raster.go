package inject

import (
	"go.viam.com/rkmpp/rga"
)

// Raster is an injected raster device.
type Raster struct {
	rga.Device
	BlitFunc  func(src, dst rga.Surface) (rga.Fence, error)
	CloseFunc func() error
}

// NewRaster returns a new injected raster device falling back to inner.
func NewRaster(inner rga.Device) *Raster {
	return &Raster{Device: inner}
}

// Blit calls the injected Blit or the real version.
func (r *Raster) Blit(src, dst rga.Surface) (rga.Fence, error) {
	if r.BlitFunc == nil {
		return r.Device.Blit(src, dst)
	}
	return r.BlitFunc(src, dst)
}

// Close calls the injected Close or the real version.
func (r *Raster) Close() error {
	if r.CloseFunc == nil {
		return r.Device.Close()
	}
	return r.CloseFunc()
}
