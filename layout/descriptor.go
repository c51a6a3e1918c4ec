package layout

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Descriptor is a zero-copy view over one channel descriptor within the
// region's descriptor table. Like Header, it holds no state beyond the
// slice it was built from.
type Descriptor struct {
	raw []byte
	id  int
}

// ID returns the table index this descriptor was looked up at, not the
// channel_id stored on the wire (use ChannelID for the latter).
func (d Descriptor) ID() int { return d.id }

// ChannelID returns the wire channel_id field.
func (d Descriptor) ChannelID() uint32 {
	return binary.LittleEndian.Uint32(d.raw[descOffChannelID:])
}

// Flags returns the descriptor's flags word.
func (d Descriptor) Flags() uint32 {
	return binary.LittleEndian.Uint32(d.raw[descOffFlags:])
}

// Capacity returns the channel's slot count. A value of 0 means the
// descriptor is uninitialized.
func (d Descriptor) Capacity() uint64 {
	return binary.LittleEndian.Uint64(d.raw[descOffCapacity:])
}

// BandOffset returns the absolute region offset of this channel's slot
// band.
func (d Descriptor) BandOffset() uint64 {
	return binary.LittleEndian.Uint64(d.raw[descOffBandOffset:])
}

// Initialized reports whether the descriptor has a non-zero capacity,
// i.e. a channel has actually been published at this table index.
func (d Descriptor) Initialized() bool {
	return d.Capacity() != 0
}

// tailAddr and headAddr return pointers to the 8-byte aligned cursor
// words. Both live at fixed offsets on their own cache line (128-byte
// isolation from each other) to avoid false sharing between producers
// and consumers; see layout.go's descOffTail/descOffHead.
func (d Descriptor) tailAddr() *uint64 {
	return (*uint64)(unsafe.Pointer(&d.raw[descOffTail]))
}

func (d Descriptor) headAddr() *uint64 {
	return (*uint64)(unsafe.Pointer(&d.raw[descOffHead]))
}

// LoadTail atomically loads the producer cursor (acquire).
func (d Descriptor) LoadTail() uint64 {
	return atomic.LoadUint64(d.tailAddr())
}

// LoadHead atomically loads the consumer cursor (acquire).
func (d Descriptor) LoadHead() uint64 {
	return atomic.LoadUint64(d.headAddr())
}

// CASTail attempts to advance the tail from old to new. Producers use
// this to claim a slot; the CAS serializes concurrent producers.
func (d Descriptor) CASTail(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(d.tailAddr(), old, new)
}

// CASHead attempts to advance the head from old to new. Consumers use
// this to claim a slot; the CAS serializes concurrent consumers.
func (d Descriptor) CASHead(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(d.headAddr(), old, new)
}

// AddTail atomically adds delta to tail and returns the new value. Not
// used by the CAS-based claim protocol in ring; exposed for diagnostics
// and for alternative FAA-style claim strategies.
func (d Descriptor) AddTail(delta uint64) uint64 {
	return atomic.AddUint64(d.tailAddr(), delta)
}

// StoreTail and StoreHead are unconditional atomic stores, used only by
// external recovery (see bus.Bus.ResetChannel) where the caller has
// already established no producer/consumer is concurrently active on
// the channel. The ordinary protocol never calls these; it always goes
// through the CAS forms above.
func (d Descriptor) StoreTail(v uint64) { atomic.StoreUint64(d.tailAddr(), v) }
func (d Descriptor) StoreHead(v uint64) { atomic.StoreUint64(d.headAddr(), v) }
