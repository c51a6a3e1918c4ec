// Command dmxpbench drives N producer goroutines against M consumer
// goroutines on a single channel of a freshly-built region file and
// reports send-to-receive latency. It exercises bus/ring exactly like
// any other caller — building the backing region file itself is
// allocator-scaffolding outside the wire contract, not a
// reimplementation of the protocol.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/neerajchowdary889/DMXP-MPMC/bus"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/logx"
	"github.com/neerajchowdary889/DMXP-MPMC/layout"
)

func main() {
	var (
		producers  = flag.IntP("producers", "p", 4, "number of producer goroutines")
		consumers  = flag.IntP("consumers", "c", 1, "number of consumer goroutines")
		capacity   = flag.Uint64("capacity", 4096, "channel capacity (slots)")
		perWorker  = flag.Int("count", 100000, "messages sent per producer")
		payloadLen = flag.Int("payload", 64, "payload size in bytes")
		regionPath = flag.String("path", "", "region file path; a temp file is used if empty")
		logPretty  = flag.Bool("pretty", true, "human-readable console logging")
	)
	flag.Parse()

	logger := logx.New(logx.Config{Level: "info", Pretty: *logPretty}, "dmxpbench")

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("automaxprocs: could not adjust GOMAXPROCS")
	}

	path := *regionPath
	if path == "" {
		f, err := os.CreateTemp("", "dmxpbench-*.region")
		if err != nil {
			logger.Fatal().Err(err).Msg("create temp region")
		}
		path = f.Name()
		f.Close()
		defer os.Remove(path)
	}
	if err := buildRegion(path, 0, *capacity); err != nil {
		logger.Fatal().Err(err).Msg("build region")
	}

	b, err := bus.Attach(path, bus.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("attach")
	}
	defer b.Close()

	total := *producers * *perWorker
	latencies := make([]time.Duration, total)
	var nextSlot atomic.Int64
	var wg sync.WaitGroup
	var received atomic.Int64

	stop := make(chan struct{})

	for i := 0; i < *consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := b.NewConsumer(0)
			if err != nil {
				logger.Error().Err(err).Msg("new consumer")
				return
			}
			for {
				select {
				case <-stop:
					return
				default:
				}
				payload, meta, err := c.Receive(10 * time.Millisecond)
				if err != nil {
					if err == bus.ErrEmpty || err == bus.ErrTimeout {
						continue
					}
					logger.Error().Err(err).Msg("receive")
					continue
				}
				sentNs := binary.LittleEndian.Uint64(payload)
				latNs := uint64(time.Now().UnixNano()) - sentNs
				slot := nextSlot.Add(1) - 1
				if int(slot) < len(latencies) {
					latencies[slot] = time.Duration(latNs)
				}
				_ = meta
				if received.Add(1) == int64(total) {
					close(stop)
					return
				}
			}
		}()
	}

	var producerWG sync.WaitGroup
	start := time.Now()
	for i := 0; i < *producers; i++ {
		producerWG.Add(1)
		go func() {
			defer producerWG.Done()
			p, err := b.NewProducer(0)
			if err != nil {
				logger.Error().Err(err).Msg("new producer")
				return
			}
			payload := make([]byte, *payloadLen)
			for j := 0; j < *perWorker; j++ {
				binary.LittleEndian.PutUint64(payload, uint64(time.Now().UnixNano()))
				for {
					if err := p.Send(payload); err == nil {
						break
					} else if err == bus.ErrChannelFull {
						continue
					} else {
						logger.Error().Err(err).Msg("send")
						return
					}
				}
			}
		}()
	}
	producerWG.Wait()

	select {
	case <-stop:
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("consumers did not drain the ring before the bench timeout")
	}
	elapsed := time.Since(start)

	report(logger, latencies[:received.Load()], elapsed, total)
}

func report(logger zerolog.Logger, latencies []time.Duration, elapsed time.Duration, total int) {
	if len(latencies) == 0 {
		logger.Warn().Msg("no messages observed")
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p50 := latencies[len(latencies)*50/100]
	p99 := latencies[min(len(latencies)*99/100, len(latencies)-1)]

	throughput := float64(total) / elapsed.Seconds()
	fmt.Printf("messages=%d elapsed=%s throughput=%.0f msgs/s p50=%s p99=%s\n",
		total, elapsed, throughput, p50, p99)
}

// buildRegion writes a minimal on-disk region with a valid header and a
// single initialized channel descriptor, the way an external allocator
// would: this module never builds regions itself in the ordinary attach
// path, only in this benchmarking tool.
func buildRegion(path string, channelID uint32, capacity uint64) error {
	bandOffset := uint64(layout.DescriptorTableOffset + layout.MaxChannels*layout.DescriptorStride)
	size := bandOffset + capacity*layout.SlotSize
	region := make([]byte, size)

	binary.LittleEndian.PutUint64(region[0:], layout.Magic)
	binary.LittleEndian.PutUint32(region[8:], 1)
	binary.LittleEndian.PutUint32(region[12:], layout.MaxChannels)
	binary.LittleEndian.PutUint32(region[16:], 1)

	descStart := layout.DescriptorTableOffset + int(channelID)*layout.DescriptorStride
	binary.LittleEndian.PutUint32(region[descStart:], channelID)
	binary.LittleEndian.PutUint64(region[descStart+8:], capacity)
	binary.LittleEndian.PutUint64(region[descStart+16:], bandOffset)

	for i := uint64(0); i < capacity; i++ {
		layout.SlotAt(region, bandOffset, i).StoreSequence(i)
	}

	return os.WriteFile(path, region, 0o644)
}
