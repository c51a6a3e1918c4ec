package bus

import "errors"

// Attach-time errors. All are fatal to the attach attempt; callers may
// retry once the producer-side allocator has initialized the region.
var (
	ErrPathMissing     = errors.New("dmxp: region path does not exist")
	ErrInvalidMagic    = errors.New("dmxp: region magic does not match")
	ErrVersionMismatch = errors.New("dmxp: region version is unsupported")
	ErrMapFailed       = errors.New("dmxp: mmap of region failed")
)

// Lookup and send/receive signals.
var (
	// ErrUnknownChannel is returned when a channel id has no initialized
	// descriptor (capacity == 0).
	ErrUnknownChannel = errors.New("dmxp: unknown channel")

	// ErrPayloadTooLarge is returned before any shared-state change when
	// a payload exceeds layout.MsgInline bytes.
	ErrPayloadTooLarge = errors.New("dmxp: payload exceeds inline limit")

	// ErrChannelFull is a transient, recoverable signal: the ring had no
	// free slot at the moment of the send attempt.
	ErrChannelFull = errors.New("dmxp: channel full")

	// ErrEmpty is returned by a non-blocking receive on an empty ring.
	ErrEmpty = errors.New("dmxp: channel empty")

	// ErrTimeout is returned by a timed receive whose deadline expired
	// before a message became available.
	ErrTimeout = errors.New("dmxp: receive timed out")
)

// ErrCorrupted indicates a slot sequence value outside the expected
// {empty, ready} set for its cycle — a crashed producer mid-publish, or
// memory corruption. The affected channel should be considered unusable
// until externally recovered (see internal/ctl).
var ErrCorrupted = errors.New("dmxp: channel slot sequence corrupted")

// IsRetryable reports whether err is a control-flow signal the caller
// is expected to handle by retrying or backing off, rather than a
// failure: ErrChannelFull, ErrEmpty, and ErrTimeout are all expected
// outcomes of normal operation, not bugs.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrChannelFull) || errors.Is(err, ErrEmpty) || errors.Is(err, ErrTimeout)
}

// ErrorCode maps err to the small negative integer ABI exposed to
// cross-language callers. Returns 0 for nil.
func ErrorCode(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnknownChannel):
		return -1
	case errors.Is(err, ErrPayloadTooLarge):
		return -2
	case errors.Is(err, ErrChannelFull):
		return -3
	case errors.Is(err, ErrInvalidMagic):
		return -4
	case errors.Is(err, ErrEmpty):
		return -5
	case errors.Is(err, ErrVersionMismatch):
		return -6
	case errors.Is(err, ErrTimeout):
		return -7
	case errors.Is(err, ErrPathMissing):
		return -8
	case errors.Is(err, ErrMapFailed):
		return -9
	case errors.Is(err, ErrCorrupted):
		return -10
	default:
		return -1000
	}
}
