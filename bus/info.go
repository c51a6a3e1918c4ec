package bus

import "github.com/neerajchowdary889/DMXP-MPMC/layout"

// ChannelInfo is a snapshot of a channel descriptor's public fields.
// Head and Tail are each loaded atomically, but not together: under
// contention the two values may come from different instants, so a
// ChannelInfo snapshot is advisory.
type ChannelInfo struct {
	ChannelID  uint32
	Capacity   uint64
	BandOffset uint64
	Head       uint64
	Tail       uint64
}

// Depth returns Tail-Head, the number of messages currently buffered.
func (c ChannelInfo) Depth() uint64 {
	return c.Tail - c.Head
}

// ChannelInfo returns the descriptor snapshot for id, or false if the
// descriptor is uninitialized (capacity == 0).
func (b *Bus) ChannelInfo(channelID uint32) (ChannelInfo, bool) {
	d, ok := b.descriptorFor(channelID)
	if !ok {
		return ChannelInfo{}, false
	}
	return ChannelInfo{
		ChannelID:  d.ChannelID(),
		Capacity:   d.Capacity(),
		BandOffset: d.BandOffset(),
		Head:       d.LoadHead(),
		Tail:       d.LoadTail(),
	}, true
}

// ListChannels iterates every table slot in ascending id order and
// returns the ids with non-zero capacity.
func (b *Bus) ListChannels() []uint32 {
	var ids []uint32
	for i := 0; i < layout.MaxChannels; i++ {
		d := b.header.Descriptor(i)
		if d.Initialized() {
			ids = append(ids, d.ChannelID())
		}
	}
	return ids
}
