package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// These assertions pin down the wire contract. Go has no repr(C), so
// rather than sizing via unsafe.Sizeof on a real struct, the layout
// constants are asserted directly: every other language attaching the
// same region must agree with these numbers, not with whatever Go's
// compiler happens to do.
func TestLayoutConstants(t *testing.T) {
	require.EqualValues(t, 0x444D58505F4D454D, Magic)
	require.Equal(t, 256, MaxChannels)
	require.Equal(t, 1088, SlotSize)
	require.Equal(t, 960, MsgInline)
	require.Equal(t, 384, DescriptorStride)
	require.Equal(t, 128, HeaderSize)
	require.Equal(t, 128, DescriptorTableOffset)
}

func TestMetaOffsets(t *testing.T) {
	require.Equal(t, 40, MetaSize)
	require.Equal(t, 0, MetaOffMessageID)
	require.Equal(t, 8, MetaOffTimestampNs)
	require.Equal(t, 16, MetaOffChannelID)
	require.Equal(t, 20, MetaOffMessageType)
	require.Equal(t, 24, MetaOffSenderPID)
	require.Equal(t, 28, MetaOffSenderRuntime)
	require.Equal(t, 30, MetaOffFlags)
	require.Equal(t, 32, MetaOffPayloadLen)
}

func TestDescriptorOffsets(t *testing.T) {
	require.Equal(t, 128, descOffTail)
	require.Equal(t, 256, descOffHead)
}

func TestSlotOffsets(t *testing.T) {
	require.Equal(t, 0, slotOffSequence)
	require.Equal(t, 8, slotOffMeta)
	require.Equal(t, 64, slotOffPayload)
}

func newTestRegion(t *testing.T, channelCount int) []byte {
	t.Helper()
	size := RegionSize(uint64(DescriptorTableOffset+MaxChannels*DescriptorStride) + uint64(channelCount)*4*SlotSize)
	return make([]byte, size)
}

func TestHeaderAndDescriptorRoundTrip(t *testing.T) {
	region := newTestRegion(t, 1)
	h := NewHeader(region)

	// Header fields are written by the external allocator; simulate that
	// here by poking the raw bytes directly, the way a conformance test
	// for an attach-only library must.
	putU64(region, offMagic, Magic)
	putU32(region, offVersion, 1)
	putU32(region, offMaxChannels, MaxChannels)
	putU32(region, offChannelCount, 1)

	require.Equal(t, Magic, h.RegionRawMagic())
	require.EqualValues(t, 1, h.Version())
	require.EqualValues(t, MaxChannels, h.MaxChannels())
	require.EqualValues(t, 1, h.ChannelCount())

	bandOffset := uint64(DescriptorTableOffset + MaxChannels*DescriptorStride)
	descStart := DescriptorTableOffset + 0*DescriptorStride
	putU32(region, descStart+descOffChannelID, 0)
	putU64(region, descStart+descOffCapacity, 4)
	putU64(region, descStart+descOffBandOffset, bandOffset)

	d := h.Descriptor(0)
	require.True(t, d.Initialized())
	require.EqualValues(t, 0, d.ChannelID())
	require.EqualValues(t, 4, d.Capacity())
	require.EqualValues(t, bandOffset, d.BandOffset())
	require.EqualValues(t, 0, d.LoadTail())
	require.EqualValues(t, 0, d.LoadHead())

	require.True(t, d.CASTail(0, 1))
	require.False(t, d.CASTail(0, 2)) // stale compare fails
	require.EqualValues(t, 1, d.LoadTail())
}

func TestSlotSequenceAndPayloadRoundTrip(t *testing.T) {
	region := newTestRegion(t, 1)
	bandOffset := uint64(DescriptorTableOffset + MaxChannels*DescriptorStride)

	slot := SlotAt(region, bandOffset, 0)
	require.EqualValues(t, 0, slot.LoadSequence())

	m := Meta{
		MessageID:     42,
		TimestampNs:   123456789,
		ChannelID:     7,
		SenderPID:     999,
		SenderRuntime: 1,
		PayloadLen:    5,
	}
	slot.WriteMeta(m)
	slot.WritePayload([]byte("Hello"))
	slot.StoreSequence(1)

	require.EqualValues(t, 1, slot.LoadSequence())
	got := slot.ReadMeta()
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("meta round trip mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []byte("Hello"), slot.ReadPayload(5))
}

func putU64(region []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		region[off+i] = byte(v >> (8 * i))
	}
}

func putU32(region []byte, off int, v uint32) {
	for i := 0; i < 4; i++ {
		region[off+i] = byte(v >> (8 * i))
	}
}
