// Package pipeline holds the unit of work moving between the decode, convert and publish stages
// and the bounded queues between them.
package pipeline

import (
	"time"

	"go.uber.org/multierr"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/rga"
)

// Stage says what an item's child holds.
type Stage int

// Item stages.
const (
	// StageRaw items have no child.
	StageRaw Stage = iota
	// StageSwapped items own the intermediate frame of a two pass conversion.
	StageSwapped
	// StageConverted items own the final converted frame.
	StageConverted
)

func (s Stage) String() string {
	switch s {
	case StageSwapped:
		return "swapped"
	case StageConverted:
		return "converted"
	default:
		return "raw"
	}
}

// Item owns one engine frame and, once a conversion ran, the child frame it produced.
// Releasing an item releases its child first.
type Item struct {
	Frame  *mpp.Frame
	Layout pixfmt.Layout
	Num    uint64

	stage Stage
	child *Item
	// Job is the blit producing this item's frame. Nil when the frame was produced synchronously.
	Job *rga.Job

	// Stamp is when the item's frame became available, PrevStamp the parent's stamp.
	Stamp     time.Time
	PrevStamp time.Time
}

// NewItem wraps an engine frame.
func NewItem(frame *mpp.Frame, layout pixfmt.Layout, num uint64, stamp time.Time) *Item {
	return &Item{Frame: frame, Layout: layout, Num: num, Stamp: stamp}
}

// Stage reports what the child holds.
func (it *Item) Stage() Stage {
	return it.stage
}

// Child is the converted or intermediate item, if any.
func (it *Item) Child() *Item {
	return it.child
}

// Attach hands ownership of child to the item. A previous child is released.
func (it *Item) Attach(stage Stage, child *Item) error {
	var err error
	if it.child != nil {
		err = it.child.Release()
	}
	it.stage, it.child = stage, child
	return err
}

// Detach takes the child out of the item, leaving it raw.
func (it *Item) Detach() *Item {
	child := it.child
	it.stage, it.child = StageRaw, nil
	return child
}

// Surface describes the item's frame for the raster driver.
func (it *Item) Surface() rga.Surface {
	s := rga.Surface{Fd: -1, Layout: it.Layout}
	if it.Frame != nil && it.Frame.Buffer != nil {
		s.Fd = it.Frame.Buffer.Fd()
		s.Mem = it.Frame.Buffer.Bytes()
	}
	return s
}

// Poll polls the blit that produces this item.
func (it *Item) Poll(timeout time.Duration) (rga.Status, error) {
	return it.Job.Poll(timeout)
}

// Release drops the child, the fence and the engine frame. It is safe to call more than once.
func (it *Item) Release() error {
	if it == nil {
		return nil
	}
	var err error
	if child := it.Detach(); child != nil {
		err = multierr.Append(err, child.Release())
	}
	if it.Job != nil {
		err = multierr.Append(err, it.Job.Close())
		it.Job = nil
	}
	if it.Frame != nil {
		err = multierr.Append(err, it.Frame.Deinit())
		it.Frame = nil
	}
	return err
}
