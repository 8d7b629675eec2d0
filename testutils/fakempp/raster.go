package fakempp

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/rga"
)

// Blit records one raster request.
type Blit struct {
	Src, Dst pixfmt.Layout
}

// Raster simulates the raster accelerator.
type Raster struct {
	mu     sync.Mutex
	blits  []Blit
	fences []*Fence
	closed bool

	// Fail makes every blit fail.
	Fail error
	// Polls is the number of non-blocking polls a fence needs before it signals.
	Polls int
	// Stuck fences never signal.
	Stuck bool
	// Pixels runs the CPU conversion when one exists so destination contents are meaningful.
	Pixels bool
}

// NewRaster returns a raster whose fences signal on the first poll.
func NewRaster() *Raster {
	return &Raster{}
}

// Blit implements rga.Device.
func (r *Raster) Blit(src, dst rga.Surface) (rga.Fence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("fake raster: closed")
	}
	if r.Fail != nil {
		return nil, r.Fail
	}
	if src.Fd < 0 || dst.Fd < 0 {
		return nil, errors.Wrap(rga.ErrUnsupported, "fake raster: surface without fd")
	}
	r.blits = append(r.blits, Blit{Src: src.Layout, Dst: dst.Layout})
	if r.Pixels {
		_ = rga.Soft(src, dst, false)
	}
	f := &Fence{needed: r.Polls, stuck: r.Stuck}
	r.fences = append(r.fences, f)
	return f, nil
}

// Close implements rga.Device.
func (r *Raster) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Blits lists every accepted blit.
func (r *Raster) Blits() []Blit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Blit(nil), r.blits...)
}

// OpenFences is the number of fences not closed yet.
func (r *Raster) OpenFences() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.fences {
		if !f.isClosed() {
			n++
		}
	}
	return n
}

// Fence is a fake release fence.
type Fence struct {
	mu     sync.Mutex
	polls  int
	needed int
	stuck  bool
	closed bool
}

// Wait implements rga.Fence. Blocking waits on stuck fences return unsignalled.
func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, errors.New("fake fence: closed")
	}
	if f.stuck {
		return false, nil
	}
	if timeout < 0 {
		return true, nil
	}
	f.polls++
	return f.polls > f.needed, nil
}

// Close implements rga.Fence.
func (f *Fence) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fence) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
