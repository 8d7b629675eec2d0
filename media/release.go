package media

import (
	"sync"

	"go.uber.org/atomic"
)

type releaser struct {
	once sync.Once
	done atomic.Bool
	fn   func() error
	err  error
}

func newReleaser(fn func() error) *releaser {
	return &releaser{fn: fn}
}

func (r *releaser) release() error {
	r.once.Do(func() {
		if r.fn != nil {
			r.err = r.fn()
		}
		r.done.Store(true)
	})
	return r.err
}
