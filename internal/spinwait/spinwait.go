// Package spinwait implements the busy-wait/yield loop shared by
// blocking and timed receive: no operation yields control to a
// scheduler, so a blocking receive busy-waits (optionally with a
// cooperative yield between spins) and a timed receive uses a
// monotonic clock to bound the wait.
//
// It adds one thing beyond the bare retry loop: if a wait runs long
// enough to be operationally interesting, it logs about it at a
// rate-limited cadence, so a stalled channel (a producer that died
// mid-publish) shows up in logs instead of spinning silently forever.
package spinwait

import (
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrDeadlineExceeded is returned by Wait when deadline passes before
// attempt stops reporting "not ready".
var ErrDeadlineExceeded = errors.New("spinwait: deadline exceeded")

// spinsBeforeYield is how many tight-loop iterations run before the
// loop starts cooperatively yielding the processor between attempts.
const spinsBeforeYield = 64

// longWaitThreshold is how long a wait must run before it starts being
// logged at all.
const longWaitThreshold = 50 * time.Millisecond

// Looper drives a bounded or unbounded retry loop around a single
// non-blocking attempt function.
type Looper struct {
	logger     zerolog.Logger
	logLimiter *rate.Limiter
}

// NewLooper builds a Looper that logs long waits through logger, at
// most once per second regardless of how many goroutines are spinning.
func NewLooper(logger zerolog.Logger) *Looper {
	return &Looper{
		logger:     logger,
		logLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Wait repeatedly calls attempt until it returns a nil error or an
// error for which notReady returns false. If deadline is non-zero and
// is reached first, Wait returns ErrDeadlineExceeded. If deadline is
// the zero Time, Wait blocks until attempt succeeds or fails for a
// reason other than "not ready".
func (l *Looper) Wait(channelID uint32, deadline time.Time, attempt func() error, notReady func(error) bool) error {
	start := time.Now()
	spins := 0
	for {
		err := attempt()
		if err == nil || !notReady(err) {
			return err
		}

		spins++
		if spins >= spinsBeforeYield {
			runtime.Gosched()
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrDeadlineExceeded
		}

		if waited := time.Since(start); waited > longWaitThreshold && l.logLimiter.Allow() {
			l.logger.Warn().
				Uint32("channel_id", channelID).
				Dur("waited", waited).
				Msg("receive still waiting for a published slot")
		}
	}
}
