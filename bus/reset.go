package bus

import "github.com/neerajchowdary889/DMXP-MPMC/layout"

// ResetChannel externally recovers a channel by resetting head, tail,
// and every slot's sequence back to their empty-for-cycle-0 state. This
// is the mitigation for a slot left half-published by a crashed
// producer, or a corrupted sequence value.
//
// ResetChannel is not part of the ordinary attach/produce/consume API
// on purpose: callers must know no producer or consumer is still
// mid-operation on the channel, which this module cannot verify on
// their behalf. It exists so internal/ctl's daemon can implement
// ctl.Resetter; it is not exposed on Producer or Consumer.
func (b *Bus) ResetChannel(channelID uint32) error {
	d, ok := b.descriptorFor(channelID)
	if !ok {
		return ErrUnknownChannel
	}

	capacity := d.Capacity()
	bandOffset := d.BandOffset()

	d.StoreTail(0)
	d.StoreHead(0)

	for i := uint64(0); i < capacity; i++ {
		layout.SlotAt(b.region, bandOffset, i).StoreSequence(i)
	}
	return nil
}
