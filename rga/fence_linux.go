//go:build linux

package rga

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// FdFence is a sync file fd that becomes readable once the blit completes.
type FdFence struct {
	fd       int
	signaled bool
}

// NewFdFence takes ownership of fd.
func NewFdFence(fd int) *FdFence {
	return &FdFence{fd: fd}
}

// Wait polls the fence fd.
func (f *FdFence) Wait(timeout time.Duration) (bool, error) {
	if f.signaled {
		return true, nil
	}
	if f.fd < 0 {
		return false, errors.New("fence closed")
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	fds := []unix.PollFd{{Fd: int32(f.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, errors.Wrap(err, "poll fence")
		}
		if n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLNVAL) != 0 {
			if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
				return false, errors.Errorf("fence error, revents %#x", fds[0].Revents)
			}
			f.signaled = true
		}
		return f.signaled, nil
	}
}

// Close closes the fence fd.
func (f *FdFence) Close() error {
	if f.fd < 0 {
		return nil
	}
	fd := f.fd
	f.fd = -1
	return unix.Close(fd)
}
