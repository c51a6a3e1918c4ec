// Package ring implements the lock-free MPMC slot protocol: the
// algorithm that lets any number of producers and consumers in any
// attached process exchange messages through a channel's slot band
// without a central lock or kernel broker.
//
// Package ring knows nothing about attach/validation or endpoint
// bookkeeping (message-id counters, PIDs) — that lives in package bus.
// It operates purely on a layout.Descriptor plus the mapped region.
package ring

import (
	"errors"
	"runtime"

	"github.com/neerajchowdary889/DMXP-MPMC/layout"
)

// ErrChannelFull is returned by Send when the ring has no free slot.
var ErrChannelFull = errors.New("ring: channel full")

// ErrNotReady is returned by a single TryReceive attempt when the next
// slot has not yet been published by a producer, or when the caller
// lost a race with another consumer for the same slot. Callers decide
// what "not ready" means for their mode (Empty, spin, or Timeout);
// ring itself never blocks or sleeps.
var ErrNotReady = errors.New("ring: slot not ready")

// ErrCorrupted is returned when a slot's sequence number is outside the
// set {empty-for-cycle-k, ready-for-cycle-k} that the protocol allows.
var ErrCorrupted = errors.New("ring: slot sequence corrupted")

// Cursors is the descriptor-level state the protocol needs: the two
// cache-line-isolated cursors and the band geometry. bus.Bus builds one
// from a layout.Descriptor per attached channel.
type Cursors struct {
	Desc       layout.Descriptor
	Region     []byte
	BandOffset uint64
	Capacity   uint64
}

// Send runs the producer side of the slot protocol: pre-check for
// fullness, claim a tail position, spin for the tiny window in which
// the claimed slot's previous cycle is still being vacated, write
// meta+payload, and publish with a release store.
//
// meta.PayloadLen must already equal len(payload); callers validate
// PayloadTooLarge before calling Send.
func (c Cursors) Send(meta layout.Meta, payload []byte) error {
	for {
		tail := c.Desc.LoadTail()
		head := c.Desc.LoadHead()
		if tail-head >= c.Capacity {
			return ErrChannelFull
		}

		if !c.Desc.CASTail(tail, tail+1) {
			continue // lost the race to another producer, resnapshot
		}

		idx := tail % c.Capacity
		slot := layout.SlotAt(c.Region, c.BandOffset, idx)

		// The pre-check above guarantees a consumer has already claimed
		// this slot for the previous cycle; spin the short window until
		// that consumer has copied it out and its release store becomes
		// visible.
		spinUntil(func() bool { return slot.LoadSequence() == tail })

		slot.WriteMeta(meta)
		slot.WritePayload(payload)
		slot.StoreSequence(tail + 1)
		return nil
	}
}

// TryReceive runs one non-blocking attempt at the consumer side of the
// slot protocol using a peek-then-CAS approach: it peeks head/tail and
// the candidate slot's sequence before claiming, and only CASes head
// forward once the slot is confirmed ready. This preserves
// 0 ≤ tail−head ≤ capacity at every observable instant, including on an
// empty ring.
//
// Returns ErrNotReady if the ring is empty or the consumer lost a race
// for the next slot (callers should retry immediately in that case —
// losing the CAS means another consumer is making progress, not that
// the ring is empty). Returns ErrCorrupted if the slot sequence is
// outside the expected set.
func (c Cursors) TryReceive() (layout.Meta, []byte, error) {
	head := c.Desc.LoadHead()
	tail := c.Desc.LoadTail()
	if head >= tail {
		return layout.Meta{}, nil, ErrNotReady
	}

	idx := head % c.Capacity
	slot := layout.SlotAt(c.Region, c.BandOffset, idx)

	cycle := head / c.Capacity
	expectedReady := idx + cycle*c.Capacity + 1
	expectedEmpty := idx + cycle*c.Capacity

	seq := slot.LoadSequence()
	switch {
	case seq == expectedReady:
		if !c.Desc.CASHead(head, head+1) {
			return layout.Meta{}, nil, ErrNotReady // lost race, caller retries
		}
		meta := slot.ReadMeta()
		payload := slot.ReadPayload(meta.PayloadLen)
		slot.StoreSequence(idx + (cycle+1)*c.Capacity)
		return meta, payload, nil
	case seq == expectedEmpty:
		return layout.Meta{}, nil, ErrNotReady
	case c.Desc.LoadHead() != head:
		return layout.Meta{}, nil, ErrNotReady // stale head: another consumer claimed this slot
	case cycle > 0 && seq == expectedReady-c.Capacity:
		return layout.Meta{}, nil, ErrNotReady // previous cycle's consumer is still copying out
	default:
		return layout.Meta{}, nil, ErrCorrupted
	}
}

// spinUntil busy-waits, yielding the processor between checks, until
// cond returns true. Used only for the narrow claim-to-publish window
// where the slot is guaranteed to become ready imminently; unbounded
// blocking waits for an actually-empty/-full ring live in package bus
// (internal/spinwait), not here.
func spinUntil(cond func() bool) {
	for i := 0; !cond(); i++ {
		if i < 64 {
			continue
		}
		runtime.Gosched()
	}
}
