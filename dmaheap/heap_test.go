package dmaheap

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestBufferCloseOnce(t *testing.T) {
	calls := 0
	b := NewBuffer(7, 4096, make([]byte, 4096), func(b *Buffer) error {
		calls++
		test.That(t, b.Fd, test.ShouldEqual, 7)
		return errors.New("boom")
	})
	test.That(t, b.Close(), test.ShouldBeError, errors.New("boom"))
	test.That(t, b.Close(), test.ShouldBeError, errors.New("boom"))
	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, b.Fd, test.ShouldEqual, -1)
	test.That(t, b.Mem, test.ShouldBeNil)
}

func TestOpenSystemMissingHeap(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenSystem(filepath.Join(dir, "system-dma32"), filepath.Join(dir, "system"))
	test.That(t, err, test.ShouldNotBeNil)
}
