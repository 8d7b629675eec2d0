// Package bufpool manages fixed size pools of DMA buffers committed to an engine buffer group.
package bufpool

import (
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/dmaheap"
	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/mpp"
)

var (
	// ErrAlloc is returned when a buffer cannot be allocated or committed.
	ErrAlloc = errors.New("dma buffer allocation failed")
	// ErrNotAllocated is returned by Get before the first Allocate.
	ErrNotAllocated = errors.New("buffer pool not allocated")
)

// GroupFactory creates external buffer groups. mpp.Engine satisfies it.
type GroupFactory interface {
	NewExternalGroup() (mpp.BufferGroup, error)
}

// Pool is a named set of equally sized DMA buffers owned by one codec instance.
type Pool struct {
	name    string
	heap    dmaheap.Heap
	factory GroupFactory
	logger  logging.Logger

	group mpp.BufferGroup
	size  int
	count int
}

// New returns an empty pool. Nothing is allocated until Allocate.
func New(name string, heap dmaheap.Heap, factory GroupFactory, logger logging.Logger) *Pool {
	return &Pool{name: name, heap: heap, factory: factory, logger: logger}
}

// Name identifies the pool in logs.
func (p *Pool) Name() string {
	return p.name
}

// Group is the engine buffer group backing the pool, or nil before Allocate.
func (p *Pool) Group() mpp.BufferGroup {
	return p.group
}

// Allocate fills the pool with count buffers of size bytes, replacing any previous contents.
// Each buffer is committed to the group, which keeps its own fd, so the local fd and mapping are
// dropped right after.
func (p *Pool) Allocate(size, count int) error {
	if size <= 0 || count <= 0 {
		return errors.Wrapf(ErrAlloc, "%s pool: invalid request of %d buffer(s) of %d bytes", p.name, count, size)
	}
	if p.group != nil {
		if err := p.group.Clear(); err != nil {
			return errors.Wrapf(err, "%s pool: failed to clear buffer group", p.name)
		}
	} else {
		group, err := p.factory.NewExternalGroup()
		if err != nil {
			return multierr.Combine(ErrAlloc, errors.Wrapf(err, "%s pool: failed to get buffer group", p.name))
		}
		p.group = group
	}
	p.size, p.count = 0, 0

	for i := 0; i < count; i++ {
		buf, err := p.heap.Alloc(size)
		if err != nil {
			return multierr.Combine(ErrAlloc, errors.Wrapf(err, "%s pool: buffer %d/%d", p.name, i+1, count))
		}
		commitErr := p.group.Commit(mpp.BufferInfo{Index: i, Fd: buf.Fd, Size: buf.Size, Mem: buf.Mem})
		if err := multierr.Combine(commitErr, buf.Close()); err != nil {
			return multierr.Combine(ErrAlloc, errors.Wrapf(err, "%s pool: failed to commit buffer %d", p.name, i))
		}
		p.count++
	}
	p.size = size

	p.logger.Debugf("%s pool: allocated %d buffer(s) of %s, %s total",
		p.name, count, units.BytesSize(float64(size)), units.BytesSize(float64(size*count)))
	return nil
}

// Get takes a free buffer large enough for size bytes.
func (p *Pool) Get(size int) (mpp.Buffer, error) {
	if p.group == nil {
		return nil, errors.Wrap(ErrNotAllocated, p.name)
	}
	return p.group.Get(size)
}

// Unused is the number of free buffers.
func (p *Pool) Unused() int {
	if p.group == nil {
		return 0
	}
	return p.group.Unused()
}

// Capacity is the number of buffers committed.
func (p *Pool) Capacity() int {
	return p.count
}

// Size is the byte size of each buffer.
func (p *Pool) Size() int {
	return p.size
}

// Clear detaches every buffer. The group stays usable for a later Allocate.
func (p *Pool) Clear() error {
	if p.group == nil {
		return nil
	}
	p.size, p.count = 0, 0
	return errors.Wrapf(p.group.Clear(), "%s pool: failed to clear buffer group", p.name)
}

// Release tears the pool down. It is safe to call more than once.
func (p *Pool) Release() error {
	if p.group == nil {
		return nil
	}
	group := p.group
	p.group = nil
	p.size, p.count = 0, 0
	return multierr.Combine(group.Clear(), group.Put())
}
