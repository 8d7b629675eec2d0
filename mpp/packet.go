package mpp

import "sync"

// MetaKey names a packet metadata entry.
type MetaKey int

// Packet metadata keys.
const (
	// KeyOutputIntra is set non-zero on packets that start with an intra frame.
	KeyOutputIntra MetaKey = iota + 1
	KeyOutputQP
)

// Packet is a compressed unit exchanged with the engine.
type Packet struct {
	Data     []byte
	PTS, DTS int64
	EOS      bool
	Meta     map[MetaKey]int32

	release func()
	once    sync.Once
}

// NewPacket wraps data. release runs once on Deinit and may be nil.
func NewPacket(data []byte, release func()) *Packet {
	return &Packet{Data: data, release: release}
}

// MetaInt returns the value of a metadata entry.
func (p *Packet) MetaInt(key MetaKey) (int32, bool) {
	if p.Meta == nil {
		return 0, false
	}
	v, ok := p.Meta[key]
	return v, ok
}

// Deinit returns the packet's memory to the engine.
func (p *Packet) Deinit() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}
