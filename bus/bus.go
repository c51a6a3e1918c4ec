// Package bus implements attach/handshake, channel lookup and
// enumeration, and the producer/consumer endpoints over a region built
// by package layout and sequenced by package ring.
//
// bus owns no protocol logic of its own: it validates the header,
// resolves descriptors, keeps the endpoint bookkeeping (message ids,
// PIDs, timeouts) itself, and hands the slot protocol to ring.Cursors.
// Attach opens the region read-write without
// truncating it — the region already exists; this package never creates
// one — maps the whole file, and closes the fd immediately.
package bus

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/neerajchowdary889/DMXP-MPMC/layout"
)

// MinVersion and MaxVersion bound the region versions this build
// understands. Both ends are inclusive.
const (
	MinVersion = 1
	MaxVersion = 1
)

// Bus is a single process's attachment to a region. Multiple Bus values
// may attach the same region within one process; each attach is an
// independent mmap.
type Bus struct {
	region []byte
	header layout.Header
	logger zerolog.Logger
	path   string
}

// Option configures Attach.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger attaches a logger used for attach/close diagnostics only;
// it is never consulted on the send/receive fast path.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Attach opens path read-write, maps it shared, and validates the
// global header's magic and version. The file descriptor is closed
// immediately after mmap succeeds; the mapping itself remains valid
// until Close.
func Attach(path string, opts ...Option) (*Bus, error) {
	o := options{logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathMissing
		}
		return nil, fmt.Errorf("dmxp: open %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dmxp: stat %s: %w", path, err)
	}
	if minSize := layout.RegionSize(0); uint64(st.Size()) < minSize {
		f.Close()
		return nil, ErrMapFailed
	}

	region, err := syscall.Mmap(int(f.Fd()), 0, int(st.Size()), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	f.Close() // fd not needed once mapped
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapFailed, err)
	}

	header := layout.NewHeader(region)
	if header.RegionRawMagic() != layout.Magic {
		syscall.Munmap(region)
		return nil, ErrInvalidMagic
	}
	if v := header.Version(); v < MinVersion || v > MaxVersion {
		syscall.Munmap(region)
		return nil, fmt.Errorf("%w: region version %d", ErrVersionMismatch, v)
	}

	b := &Bus{region: region, header: header, logger: o.logger, path: path}
	b.logger.Info().Str("path", path).Int("size", len(region)).Msg("attached region")
	return b, nil
}

// Close unmaps the region. No partial teardown is possible: either the
// whole mapping goes away, or Close returns the munmap error and the
// mapping is left as-is.
func (b *Bus) Close() error {
	if err := syscall.Munmap(b.region); err != nil {
		return fmt.Errorf("dmxp: munmap %s: %w", b.path, err)
	}
	b.logger.Info().Str("path", b.path).Msg("detached region")
	return nil
}

// descriptorFor resolves a channel id to its descriptor. channel_id
// equals the table index for every initialized descriptor, so lookup is
// a direct, bounds-checked index.
func (b *Bus) descriptorFor(channelID uint32) (layout.Descriptor, bool) {
	if channelID >= layout.MaxChannels {
		return layout.Descriptor{}, false
	}
	d := b.header.Descriptor(int(channelID))
	if !d.Initialized() {
		return layout.Descriptor{}, false
	}
	return d, true
}
