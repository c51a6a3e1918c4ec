package bus

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/neerajchowdary889/DMXP-MPMC/layout"
	"github.com/neerajchowdary889/DMXP-MPMC/ring"
)

// RuntimeTag identifies the language/runtime a producer is running in,
// carried in every message's meta.sender_runtime for cross-language
// diagnostics.
type RuntimeTag uint16

// RuntimeGo is this module's own runtime tag. Other bindings (C, Rust,
// Python ctypes) reserve their own values in the same ABI.
const RuntimeGo RuntimeTag = 1

// Producer is a stateless (beyond its own counters) endpoint bound to
// one channel. Construction never allocates in the shared region —
// only existing channels may be produced to — and multiple producers
// per process, per channel, are safe.
type Producer struct {
	channelID uint32
	pid       uint32
	runtime   RuntimeTag
	cursors   ring.Cursors
	nextMsgID atomic.Uint64
	recorder  Recorder
}

// ProducerOption configures NewProducer.
type ProducerOption func(*Producer)

// WithProducerRecorder attaches a Recorder for metrics observation.
func WithProducerRecorder(r Recorder) ProducerOption {
	return func(p *Producer) { p.recorder = r }
}

// WithRuntimeTag overrides the default RuntimeGo tag, for bindings that
// embed this module but want to report a different originating
// runtime.
func WithRuntimeTag(tag RuntimeTag) ProducerOption {
	return func(p *Producer) { p.runtime = tag }
}

// NewProducer resolves channelID to its descriptor and returns an
// endpoint bound to it. Returns ErrUnknownChannel if the descriptor is
// uninitialized.
func (b *Bus) NewProducer(channelID uint32, opts ...ProducerOption) (*Producer, error) {
	d, ok := b.descriptorFor(channelID)
	if !ok {
		return nil, ErrUnknownChannel
	}
	p := &Producer{
		channelID: channelID,
		pid:       uint32(os.Getpid()),
		runtime:   RuntimeGo,
		recorder:  NoopRecorder,
		cursors: ring.Cursors{
			Desc:       d,
			Region:     b.region,
			BandOffset: d.BandOffset(),
			Capacity:   d.Capacity(),
		},
	}
	for _, fn := range opts {
		fn(p)
	}
	return p, nil
}

// Send writes payload to the channel. Returns ErrPayloadTooLarge before
// any shared-state change if payload exceeds layout.MsgInline bytes, or
// ErrChannelFull if the ring had no free slot at the moment of the
// attempt.
func (p *Producer) Send(payload []byte) error {
	if len(payload) > layout.MsgInline {
		p.recorder.ObserveSend(p.channelID, ErrPayloadTooLarge)
		return ErrPayloadTooLarge
	}

	meta := layout.Meta{
		MessageID:     p.nextMsgID.Add(1),
		TimestampNs:   uint64(time.Now().UnixNano()),
		ChannelID:     p.channelID,
		SenderPID:     p.pid,
		SenderRuntime: uint16(p.runtime),
		PayloadLen:    uint32(len(payload)),
	}

	err := p.cursors.Send(meta, payload)
	mapped := mapRingError(err)
	p.recorder.ObserveSend(p.channelID, mapped)
	return mapped
}

// SendBatch sends each message in order, stopping at the first
// ErrChannelFull and returning the count actually sent. Any error other
// than ErrChannelFull is returned immediately alongside the count sent
// so far.
func (p *Producer) SendBatch(messages [][]byte) (int, error) {
	for i, msg := range messages {
		if err := p.Send(msg); err != nil {
			if err == ErrChannelFull {
				return i, nil
			}
			return i, err
		}
	}
	return len(messages), nil
}

func mapRingError(err error) error {
	switch err {
	case nil:
		return nil
	case ring.ErrChannelFull:
		return ErrChannelFull
	case ring.ErrCorrupted:
		return ErrCorrupted
	default:
		return err
	}
}
