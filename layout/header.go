package layout

import "encoding/binary"

// Header is a zero-copy view over the global header prefix of a mapped
// region. It holds no state of its own; every read goes straight to the
// backing slice.
type Header struct {
	region []byte
}

// NewHeader wraps region as a Header view. region must be at least
// HeaderSize bytes long.
func NewHeader(region []byte) Header {
	return Header{region: region}
}

// RegionRawMagic returns the magic value as found on the wire, without
// validating it.
func (h Header) RegionRawMagic() uint64 {
	return binary.LittleEndian.Uint64(h.region[offMagic:])
}

// Version returns the region's format version.
func (h Header) Version() uint32 {
	return binary.LittleEndian.Uint32(h.region[offVersion:])
}

// MaxChannels returns the fixed upper bound of the descriptor table as
// recorded in the region itself (expected to equal layout.MaxChannels).
func (h Header) MaxChannels() uint32 {
	return binary.LittleEndian.Uint32(h.region[offMaxChannels:])
}

// ChannelCount returns the advisory count of initialized channels. It
// may lag the true count; callers that need an authoritative answer
// should use ListChannels instead.
func (h Header) ChannelCount() uint32 {
	return binary.LittleEndian.Uint32(h.region[offChannelCount:])
}

// Descriptor returns a view over the channel descriptor at index id.
// id must be in [0, MaxChannels). The caller is responsible for bounds
// checking; Descriptor does not re-validate it.
func (h Header) Descriptor(id int) Descriptor {
	start := DescriptorTableOffset + id*DescriptorStride
	return Descriptor{
		raw: h.region[start : start+DescriptorStride],
		id:  id,
	}
}
