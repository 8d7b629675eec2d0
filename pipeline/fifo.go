package pipeline

import "github.com/pkg/errors"

var (
	// ErrFull is returned by Push on a full queue.
	ErrFull = errors.New("fifo full")
	// ErrEmpty is returned by Pop on an empty queue.
	ErrEmpty = errors.New("fifo empty")
)

// Fifo is a bounded single producer single consumer queue of items.
type Fifo struct {
	slots []*Item
	head  int
	used  int
}

// NewFifo returns a queue holding at most limit items.
func NewFifo(limit int) *Fifo {
	if limit < 1 {
		limit = 1
	}
	return &Fifo{slots: make([]*Item, limit)}
}

// Push appends an item.
func (f *Fifo) Push(it *Item) error {
	if f.Full() {
		return ErrFull
	}
	f.slots[(f.head+f.used)%len(f.slots)] = it
	f.used++
	return nil
}

// Pop removes the head item.
func (f *Fifo) Pop() (*Item, error) {
	if f.used == 0 {
		return nil, ErrEmpty
	}
	it := f.slots[f.head]
	f.slots[f.head] = nil
	f.head = (f.head + 1) % len(f.slots)
	f.used--
	return it, nil
}

// Head returns the oldest item without removing it.
func (f *Fifo) Head() *Item {
	if f.used == 0 {
		return nil
	}
	return f.slots[f.head]
}

// Tail returns the newest item.
func (f *Fifo) Tail() *Item {
	if f.used == 0 {
		return nil
	}
	return f.slots[(f.head+f.used-1)%len(f.slots)]
}

// Len is the number of queued items.
func (f *Fifo) Len() int {
	return f.used
}

// Cap is the queue limit.
func (f *Fifo) Cap() int {
	return len(f.slots)
}

// Full reports whether Push would fail.
func (f *Fifo) Full() bool {
	return f.used == len(f.slots)
}

// Empty reports whether Pop would fail.
func (f *Fifo) Empty() bool {
	return f.used == 0
}

// Resize changes the limit. Queued items are kept; the queue must hold no more than limit.
func (f *Fifo) Resize(limit int) error {
	if limit < 1 || limit < f.used {
		return errors.Errorf("cannot resize fifo holding %d item(s) to %d", f.used, limit)
	}
	slots := make([]*Item, limit)
	for i := 0; i < f.used; i++ {
		slots[i] = f.slots[(f.head+i)%len(f.slots)]
	}
	f.slots, f.head = slots, 0
	return nil
}

// Drain pops every item in order and hands it to fn.
func (f *Fifo) Drain(fn func(*Item)) {
	for !f.Empty() {
		it, _ := f.Pop()
		fn(it)
	}
}
