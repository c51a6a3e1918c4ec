package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neerajchowdary889/DMXP-MPMC/layout"
)

func newTestChannel(t *testing.T, capacity uint64) Cursors {
	t.Helper()
	bandOffset := uint64(layout.DescriptorTableOffset + layout.MaxChannels*layout.DescriptorStride)
	region := make([]byte, bandOffset+capacity*layout.SlotSize)

	descStart := layout.DescriptorTableOffset
	putU32(region, descStart+0, 0)
	putU64(region, descStart+8, capacity)
	putU64(region, descStart+16, bandOffset)

	// Slots start at sequence == index (empty marker for cycle 0).
	for i := uint64(0); i < capacity; i++ {
		slot := layout.SlotAt(region, bandOffset, i)
		slot.StoreSequence(i)
	}

	h := layout.NewHeader(region)
	return Cursors{
		Desc:       h.Descriptor(0),
		Region:     region,
		BandOffset: bandOffset,
		Capacity:   capacity,
	}
}

func putU32(region []byte, off int, v uint32) {
	for i := 0; i < 4; i++ {
		region[off+i] = byte(v >> (8 * i))
	}
}

func putU64(region []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		region[off+i] = byte(v >> (8 * i))
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	c := newTestChannel(t, 4)

	err := c.Send(layout.Meta{MessageID: 1, PayloadLen: 5}, []byte("Hello"))
	require.NoError(t, err)

	meta, payload, err := c.TryReceive()
	require.NoError(t, err)
	require.Equal(t, []byte("Hello"), payload)
	require.EqualValues(t, 1, meta.MessageID)
	require.EqualValues(t, 1, c.Desc.LoadHead())
	require.EqualValues(t, c.Desc.LoadHead(), c.Desc.LoadTail())
}

func TestChannelFull(t *testing.T) {
	c := newTestChannel(t, 2)

	require.NoError(t, c.Send(layout.Meta{PayloadLen: 1}, []byte("A")))
	require.NoError(t, c.Send(layout.Meta{PayloadLen: 1}, []byte("B")))

	err := c.Send(layout.Meta{PayloadLen: 1}, []byte("C"))
	require.ErrorIs(t, err, ErrChannelFull)
	require.EqualValues(t, 2, c.Desc.LoadTail()) // unchanged by the rejected send

	_, payload, err := c.TryReceive()
	require.NoError(t, err)
	require.Equal(t, []byte("A"), payload)

	require.NoError(t, c.Send(layout.Meta{PayloadLen: 1}, []byte("C")))

	_, payload, err = c.TryReceive()
	require.NoError(t, err)
	require.Equal(t, []byte("B"), payload)

	_, payload, err = c.TryReceive()
	require.NoError(t, err)
	require.Equal(t, []byte("C"), payload)
}

func TestReceiveEmpty(t *testing.T) {
	c := newTestChannel(t, 4)
	_, _, err := c.TryReceive()
	require.ErrorIs(t, err, ErrNotReady)
	require.EqualValues(t, 0, c.Desc.LoadHead())
}

func TestFillDrainLeavesHeadEqualsTail(t *testing.T) {
	c := newTestChannel(t, 4)
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Send(layout.Meta{PayloadLen: 1}, []byte{byte('A' + i)}))
	}

	var got []byte
	for i := 0; i < 4; i++ {
		_, payload, err := c.TryReceive()
		require.NoError(t, err)
		got = append(got, payload...)
	}
	require.Equal(t, []byte("ABCD"), got)

	_, _, err := c.TryReceive()
	require.ErrorIs(t, err, ErrNotReady)
	require.Equal(t, c.Desc.LoadTail(), c.Desc.LoadHead())
}

func TestConcurrentProducersSingleConsumerPreservesMultiset(t *testing.T) {
	const (
		producers   = 2
		perProducer = 1000
		capacity    = 8
	)
	c := newTestChannel(t, capacity)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				payload := []byte{byte(p), byte(i), byte(i >> 8)}
				for {
					err := c.Send(layout.Meta{PayloadLen: uint32(len(payload))}, payload)
					if err == nil {
						break
					}
					require.ErrorIs(t, err, ErrChannelFull)
				}
			}
		}(p)
	}

	received := make(map[[3]byte]int)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		count := 0
		for count < producers*perProducer {
			_, payload, err := c.TryReceive()
			if err != nil {
				continue
			}
			var key [3]byte
			copy(key[:], payload)
			mu.Lock()
			received[key]++
			mu.Unlock()
			count++
		}
	}()

	wg.Wait()
	<-done

	require.Len(t, received, producers*perProducer)
	for _, n := range received {
		require.Equal(t, 1, n)
	}
}
