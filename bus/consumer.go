package bus

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/spinwait"
	"github.com/neerajchowdary889/DMXP-MPMC/layout"
	"github.com/neerajchowdary889/DMXP-MPMC/ring"
)

// Consumer is a stateless endpoint bound to one channel. Multiple
// consumers per process, per channel, are safe.
type Consumer struct {
	channelID uint32
	cursors   ring.Cursors
	looper    *spinwait.Looper
	recorder  Recorder
}

// ConsumerOption configures NewConsumer.
type ConsumerOption func(*Consumer)

// WithConsumerRecorder attaches a Recorder for metrics observation.
func WithConsumerRecorder(r Recorder) ConsumerOption {
	return func(c *Consumer) { c.recorder = r }
}

// WithConsumerLogger overrides the logger used to report long blocking
// waits (see internal/spinwait). Defaults to a no-op logger.
func WithConsumerLogger(logger zerolog.Logger) ConsumerOption {
	return func(c *Consumer) { c.looper = spinwait.NewLooper(logger) }
}

// NewConsumer resolves channelID to its descriptor and returns an
// endpoint bound to it. Returns ErrUnknownChannel if the descriptor is
// uninitialized.
func (b *Bus) NewConsumer(channelID uint32, opts ...ConsumerOption) (*Consumer, error) {
	d, ok := b.descriptorFor(channelID)
	if !ok {
		return nil, ErrUnknownChannel
	}
	c := &Consumer{
		channelID: channelID,
		recorder:  NoopRecorder,
		looper:    spinwait.NewLooper(zerolog.Nop()),
		cursors: ring.Cursors{
			Desc:       d,
			Region:     b.region,
			BandOffset: d.BandOffset(),
			Capacity:   d.Capacity(),
		},
	}
	for _, fn := range opts {
		fn(c)
	}
	return c, nil
}

// Receive supports three timeout modes:
//
//   - timeout == 0: non-blocking, returns ErrEmpty immediately if no
//     message is ready.
//   - timeout < 0: blocking, spins/yields until a message arrives.
//   - timeout > 0: timed, spins/yields until a message arrives or the
//     deadline passes, in which case it returns ErrTimeout.
func (c *Consumer) Receive(timeout time.Duration) ([]byte, layout.Meta, error) {
	if timeout == 0 {
		meta, payload, err := c.cursors.TryReceive()
		mapped := mapReceiveError(err)
		c.recorder.ObserveReceive(c.channelID, mapped)
		return payload, meta, mapped
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	var (
		payload []byte
		meta    layout.Meta
	)
	err := c.looper.Wait(c.channelID, deadline, func() error {
		m, p, err := c.cursors.TryReceive()
		if err == nil {
			meta, payload = m, p
		}
		return err
	}, func(err error) bool {
		return err == ring.ErrNotReady
	})

	var mapped error
	switch err {
	case nil:
		mapped = nil
	case spinwait.ErrDeadlineExceeded:
		mapped = ErrTimeout
	default:
		mapped = mapReceiveError(err)
	}
	c.recorder.ObserveReceive(c.channelID, mapped)
	return payload, meta, mapped
}

func mapReceiveError(err error) error {
	switch err {
	case nil:
		return nil
	case ring.ErrNotReady:
		return ErrEmpty
	case ring.ErrCorrupted:
		return ErrCorrupted
	default:
		return err
	}
}
