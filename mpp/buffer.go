package mpp

// Buffer is a reference counted engine buffer. The engine holds its own references while it
// reads or writes the memory.
type Buffer interface {
	Fd() int
	Size() int
	// Bytes is the CPU mapping of the buffer.
	Bytes() []byte
	Index() int
	// Ref takes an additional reference.
	Ref()
	// Release drops one reference. The last release returns the buffer to its group.
	Release() error
}

// BufferInfo describes externally allocated memory handed to a group.
type BufferInfo struct {
	Index int
	Fd    int
	Size  int
	// Mem is the caller's mapping. The group duplicates Fd and maps it itself.
	Mem []byte
}

// BufferGroup is an external buffer group: memory is committed by the caller, then handed out by
// the group to whoever needs a frame buffer.
type BufferGroup interface {
	// Commit adds a buffer to the group. The group duplicates the fd, so the caller may close
	// its own copy right after.
	Commit(info BufferInfo) error
	// Get returns a free buffer of at least size bytes, or ErrNoBuffer.
	Get(size int) (Buffer, error)
	// Unused is the number of committed buffers nobody references.
	Unused() int
	// Count is the number of committed buffers.
	Count() int
	// Clear detaches every committed buffer. Buffers still referenced stay valid until released.
	Clear() error
	// Put releases the group itself.
	Put() error
}
