//go:build linux

package dmaheap

import (
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// _IOWR('H', 0x0, struct dma_heap_allocation_data)
const dmaHeapIoctlAlloc = 0xc0184800

type allocationData struct {
	Len       uint64
	Fd        uint32
	FdFlags   uint32
	HeapFlags uint64
}

func ioctl(fd, request, data uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, request, data)
	if errno != 0 {
		return errno
	}
	return nil
}

// SystemHeap allocates from a /dev/dma_heap device.
type SystemHeap struct {
	mu   sync.Mutex
	dev  *os.File
	path string
}

// OpenSystem opens the first heap that exists among paths, or DefaultPaths when none are given.
func OpenSystem(paths ...string) (*SystemHeap, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	var errs error
	for _, p := range paths {
		dev, err := os.OpenFile(p, os.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		return &SystemHeap{dev: dev, path: p}, nil
	}
	return nil, errors.Wrap(errs, "no dma heap available")
}

// Path is the device the heap allocates from.
func (h *SystemHeap) Path() string {
	return h.path
}

// Alloc allocates size bytes and maps them read-write.
func (h *SystemHeap) Alloc(size int) (*Buffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dev == nil {
		return nil, ErrClosed
	}
	if size <= 0 {
		return nil, errors.Errorf("invalid dma allocation size %d", size)
	}

	req := allocationData{
		Len:     uint64(size),
		FdFlags: unix.O_CLOEXEC | unix.O_RDWR,
	}
	//nolint:gosec
	if err := ioctl(h.dev.Fd(), dmaHeapIoctlAlloc, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, errors.Wrapf(err, "DMA_HEAP_IOCTL_ALLOC %d bytes on %s", size, h.path)
	}
	fd := int(req.Fd)

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "mmap dma buffer"), unix.Close(fd))
	}
	return NewBuffer(fd, size, mem, unmapAndClose), nil
}

func unmapAndClose(b *Buffer) error {
	var err error
	if b.Mem != nil {
		err = unix.Munmap(b.Mem)
	}
	return multierr.Combine(err, unix.Close(b.Fd))
}

// Close closes the heap device. Buffers already allocated stay valid.
func (h *SystemHeap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dev == nil {
		return nil
	}
	err := h.dev.Close()
	h.dev = nil
	return err
}
