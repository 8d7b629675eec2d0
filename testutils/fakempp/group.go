package fakempp

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/rkmpp/mpp"
)

// Group is an external buffer group.
type Group struct {
	mu   sync.Mutex
	bufs []*Buffer
	put  bool

	// FailCommit makes every Commit fail.
	FailCommit bool
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{}
}

// Commit adopts the caller's memory under a duplicated fd.
func (g *Group) Commit(info mpp.BufferInfo) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.put {
		return errors.New("fake group: commit after put")
	}
	if g.FailCommit {
		return errors.New("fake group: commit refused")
	}
	if info.Size <= 0 || len(info.Mem) < info.Size {
		return errors.Errorf("fake group: commit of %d bytes with %d mapped", info.Size, len(info.Mem))
	}
	g.bufs = append(g.bufs, &Buffer{group: g, index: info.Index, fd: newFd(), size: info.Size, mem: info.Mem})
	return nil
}

// Get returns the first free buffer of at least size bytes.
func (g *Group) Get(size int) (mpp.Buffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.bufs {
		if b.size >= size && b.refs.CompareAndSwap(0, 1) {
			return b, nil
		}
	}
	return nil, mpp.ErrNoBuffer
}

// Unused is the number of attached buffers nobody references.
func (g *Group) Unused() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, b := range g.bufs {
		if b.refs.Load() == 0 {
			n++
		}
	}
	return n
}

// Count is the number of attached buffers.
func (g *Group) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bufs)
}

// Clear detaches every buffer. Referenced buffers stay readable until their last release.
func (g *Group) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.bufs {
		b.detached.Store(true)
	}
	g.bufs = nil
	return nil
}

// Put releases the group.
func (g *Group) Put() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.put {
		return errors.New("fake group: put twice")
	}
	g.put = true
	return nil
}

// IsPut reports whether Put was called.
func (g *Group) IsPut() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.put
}

// InUse is the number of attached buffers with at least one reference.
func (g *Group) InUse() int {
	return g.Count() - g.Unused()
}

// Buffer is a group buffer.
type Buffer struct {
	group    *Group
	index    int
	fd       int
	size     int
	mem      []byte
	refs     atomic.Int32
	detached atomic.Bool
}

// Fd is the group's duplicated fd.
func (b *Buffer) Fd() int { return b.fd }

// Size is the committed size.
func (b *Buffer) Size() int { return b.size }

// Bytes is the shared memory.
func (b *Buffer) Bytes() []byte { return b.mem[:b.size] }

// Index is the commit index.
func (b *Buffer) Index() int { return b.index }

// Ref takes a reference.
func (b *Buffer) Ref() { b.refs.Inc() }

// Release drops a reference.
func (b *Buffer) Release() error {
	if n := b.refs.Dec(); n < 0 {
		b.refs.Inc()
		return errors.Errorf("fake buffer %d released too often", b.index)
	}
	return nil
}

// Refs is the current reference count.
func (b *Buffer) Refs() int {
	return int(b.refs.Load())
}

// Imported is a foreign DMA-BUF wrapped by ImportBuffer.
type Imported struct {
	fd   int
	size int
	mem  []byte
	refs atomic.Int32
}

// NewImported wraps fd with mem standing in for its contents.
func NewImported(fd, size int, mem []byte) *Imported {
	im := &Imported{fd: fd, size: size, mem: mem}
	im.refs.Store(1)
	return im
}

// Fd is the foreign fd.
func (b *Imported) Fd() int { return b.fd }

// Size is the imported size.
func (b *Imported) Size() int { return b.size }

// Bytes is the memory registered for the fd, or nil.
func (b *Imported) Bytes() []byte { return b.mem }

// Index is always -1.
func (b *Imported) Index() int { return -1 }

// Ref takes a reference.
func (b *Imported) Ref() { b.refs.Inc() }

// Release drops a reference.
func (b *Imported) Release() error {
	if n := b.refs.Dec(); n < 0 {
		b.refs.Inc()
		return errors.New("fake imported buffer released too often")
	}
	return nil
}

// Refs is the current reference count.
func (b *Imported) Refs() int {
	return int(b.refs.Load())
}
