// Package diag provides a small HTTP server exposing channel depth and
// health as JSON and as Prometheus metrics, plus process stats for the
// attaching process. None of it is part of the wire contract in package
// layout; it exists purely to let an operator see what a region is doing.
package diag

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neerajchowdary889/DMXP-MPMC/bus"
)

// Metrics implements bus.Recorder, backing a small set of Prometheus
// collectors. Producer/Consumer endpoints hold a bus.Recorder (possibly
// bus.NoopRecorder); attaching a *Metrics there is the only way the hot
// path pays for observability, and even then it's a handful of label
// lookups and counter increments, not a syscall.
type Metrics struct {
	registry          *prometheus.Registry
	sendsTotal        *prometheus.CounterVec
	receivesTotal     *prometheus.CounterVec
	channelFullTotal  *prometheus.CounterVec
	channelEmptyTotal *prometheus.CounterVec
	channelDepth      *prometheus.GaugeVec
}

// NewMetrics registers DMXP's collectors against reg and returns a
// Metrics ready to pass to bus.WithProducerRecorder /
// bus.WithConsumerRecorder. The /metrics route served by
// internal/diag's Server gathers from this same registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmxp_sends_total",
			Help: "Total Send calls per channel, labeled by outcome.",
		}, []string{"channel_id", "outcome"}),
		receivesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmxp_receives_total",
			Help: "Total Receive calls per channel, labeled by outcome.",
		}, []string{"channel_id", "outcome"}),
		channelFullTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmxp_channel_full_total",
			Help: "Total ChannelFull rejections per channel.",
		}, []string{"channel_id"}),
		channelEmptyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmxp_channel_empty_total",
			Help: "Total non-blocking Empty results per channel.",
		}, []string{"channel_id"}),
		channelDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dmxp_channel_depth",
			Help: "Current tail-head backlog per channel.",
		}, []string{"channel_id"}),
	}
	reg.MustRegister(m.sendsTotal, m.receivesTotal, m.channelFullTotal, m.channelEmptyTotal, m.channelDepth)
	return m
}

// Gatherer returns the registry Metrics registered its collectors
// against, for wiring into a promhttp handler.
func (m *Metrics) Gatherer() *prometheus.Registry {
	return m.registry
}

// ObserveSend implements bus.Recorder.
func (m *Metrics) ObserveSend(channelID uint32, err error) {
	m.sendsTotal.WithLabelValues(channelLabel(channelID), outcomeLabel(err)).Inc()
	if err == bus.ErrChannelFull {
		m.channelFullTotal.WithLabelValues(channelLabel(channelID)).Inc()
	}
}

// ObserveReceive implements bus.Recorder.
func (m *Metrics) ObserveReceive(channelID uint32, err error) {
	m.receivesTotal.WithLabelValues(channelLabel(channelID), outcomeLabel(err)).Inc()
	if err == bus.ErrEmpty {
		m.channelEmptyTotal.WithLabelValues(channelLabel(channelID)).Inc()
	}
}

// RefreshDepths sets the depth gauge for every channel currently
// described in b's region. It is meant to be called right before a
// /metrics scrape is served, since the gauge otherwise has no event to
// hang an update on the way the counters do.
func (m *Metrics) RefreshDepths(b *bus.Bus) {
	for _, id := range b.ListChannels() {
		info, ok := b.ChannelInfo(id)
		if !ok {
			continue
		}
		m.channelDepth.WithLabelValues(channelLabel(id)).Set(float64(info.Depth()))
	}
}

func outcomeLabel(err error) string {
	switch err {
	case nil:
		return "ok"
	case bus.ErrChannelFull:
		return "full"
	case bus.ErrEmpty:
		return "empty"
	case bus.ErrTimeout:
		return "timeout"
	case bus.ErrCorrupted:
		return "corrupted"
	default:
		return "error"
	}
}

func channelLabel(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
