package layout

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Meta is the decoded form of a slot's 40-byte meta block. message_type
// and flags are transported but carry no interpreted semantics in this
// module; they are reserved for upper layers.
type Meta struct {
	MessageID     uint64
	TimestampNs   uint64
	ChannelID     uint32
	MessageType   uint32
	SenderPID     uint32
	SenderRuntime uint16
	Flags         uint16
	PayloadLen    uint32
}

// Slot is a zero-copy view over one fixed-size slot within a channel's
// band.
type Slot struct {
	raw []byte
}

// SlotAt returns a view over the slot at byte offset
// bandOffset+index*SlotSize within region.
func SlotAt(region []byte, bandOffset uint64, index uint64) Slot {
	start := bandOffset + index*SlotSize
	return Slot{raw: region[start : start+SlotSize]}
}

func (s Slot) seqAddr() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.raw[slotOffSequence]))
}

// LoadSequence atomically loads the slot's publication sequence
// (acquire).
func (s Slot) LoadSequence() uint64 {
	return atomic.LoadUint64(s.seqAddr())
}

// StoreSequence atomically stores the slot's publication sequence
// (release).
func (s Slot) StoreSequence(v uint64) {
	atomic.StoreUint64(s.seqAddr(), v)
}

// WriteMeta encodes m into the slot's meta block. Not atomic; callers
// must only do this after the producer-side sequence check and before
// the release store that publishes the slot.
func (s Slot) WriteMeta(m Meta) {
	b := s.raw[slotOffMeta : slotOffMeta+MetaSize]
	binary.LittleEndian.PutUint64(b[MetaOffMessageID:], m.MessageID)
	binary.LittleEndian.PutUint64(b[MetaOffTimestampNs:], m.TimestampNs)
	binary.LittleEndian.PutUint32(b[MetaOffChannelID:], m.ChannelID)
	binary.LittleEndian.PutUint32(b[MetaOffMessageType:], m.MessageType)
	binary.LittleEndian.PutUint32(b[MetaOffSenderPID:], m.SenderPID)
	binary.LittleEndian.PutUint16(b[MetaOffSenderRuntime:], m.SenderRuntime)
	binary.LittleEndian.PutUint16(b[MetaOffFlags:], m.Flags)
	binary.LittleEndian.PutUint32(b[MetaOffPayloadLen:], m.PayloadLen)
}

// ReadMeta decodes the slot's meta block.
func (s Slot) ReadMeta() Meta {
	b := s.raw[slotOffMeta : slotOffMeta+MetaSize]
	return Meta{
		MessageID:     binary.LittleEndian.Uint64(b[MetaOffMessageID:]),
		TimestampNs:   binary.LittleEndian.Uint64(b[MetaOffTimestampNs:]),
		ChannelID:     binary.LittleEndian.Uint32(b[MetaOffChannelID:]),
		MessageType:   binary.LittleEndian.Uint32(b[MetaOffMessageType:]),
		SenderPID:     binary.LittleEndian.Uint32(b[MetaOffSenderPID:]),
		SenderRuntime: binary.LittleEndian.Uint16(b[MetaOffSenderRuntime:]),
		Flags:         binary.LittleEndian.Uint16(b[MetaOffFlags:]),
		PayloadLen:    binary.LittleEndian.Uint32(b[MetaOffPayloadLen:]),
	}
}

// WritePayload copies payload into the slot's inline payload area.
// len(payload) must be <= MsgInline; callers enforce PayloadTooLarge
// before reaching here.
func (s Slot) WritePayload(payload []byte) {
	copy(s.raw[slotOffPayload:], payload)
}

// ReadPayload returns a copy of the first n bytes of the slot's payload
// area. The returned slice does not alias the slot's backing memory, so
// it remains valid after the slot is recycled.
func (s Slot) ReadPayload(n uint32) []byte {
	out := make([]byte, n)
	copy(out, s.raw[slotOffPayload:uint32(slotOffPayload)+n])
	return out
}
