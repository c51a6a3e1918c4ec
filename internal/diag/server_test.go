package diag

import (
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/neerajchowdary889/DMXP-MPMC/bus"
	"github.com/neerajchowdary889/DMXP-MPMC/layout"
)

func writeTestRegion(t *testing.T) string {
	t.Helper()
	bandOffset := uint64(layout.DescriptorTableOffset + layout.MaxChannels*layout.DescriptorStride)
	region := make([]byte, bandOffset+4*layout.SlotSize)

	binary.LittleEndian.PutUint64(region[0:], layout.Magic)
	binary.LittleEndian.PutUint32(region[8:], 1)
	binary.LittleEndian.PutUint32(region[12:], layout.MaxChannels)

	descStart := layout.DescriptorTableOffset
	binary.LittleEndian.PutUint64(region[descStart+8:], 4)
	binary.LittleEndian.PutUint64(region[descStart+16:], bandOffset)

	for i := uint64(0); i < 4; i++ {
		layout.SlotAt(region, bandOffset, i).StoreSequence(i)
	}

	path := filepath.Join(t.TempDir(), "region")
	require.NoError(t, os.WriteFile(path, region, 0o644))
	return path
}

func TestServerListChannelsAndHealth(t *testing.T) {
	path := writeTestRegion(t)
	b, err := bus.Attach(path)
	require.NoError(t, err)
	defer b.Close()

	srv := NewServer(ServerConfig{Bus: b})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/channels")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/channels/0")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/channels/9")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestServerMetricsRouteRefreshesDepth(t *testing.T) {
	path := writeTestRegion(t)
	b, err := bus.Attach(path)
	require.NoError(t, err)
	defer b.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	prod, err := b.NewProducer(0)
	require.NoError(t, err)
	require.NoError(t, prod.Send([]byte("x")))

	srv := NewServer(ServerConfig{Bus: b, Metrics: m})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestMetricsRecordsOutcomes(t *testing.T) {
	path := writeTestRegion(t)
	b, err := bus.Attach(path)
	require.NoError(t, err)
	defer b.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	prod, err := b.NewProducer(0, bus.WithProducerRecorder(m))
	require.NoError(t, err)
	require.NoError(t, prod.Send([]byte("x")))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestMetricsRefreshDepthsReflectsLiveBacklog(t *testing.T) {
	path := writeTestRegion(t)
	b, err := bus.Attach(path)
	require.NoError(t, err)
	defer b.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	prod, err := b.NewProducer(0)
	require.NoError(t, err)
	require.NoError(t, prod.Send([]byte("x")))
	require.NoError(t, prod.Send([]byte("y")))

	m.RefreshDepths(b)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() != "dmxp_channel_depth" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "channel_id" && label.GetValue() == "0" {
					require.Equal(t, float64(2), metric.GetGauge().GetValue())
					found = true
				}
			}
		}
	}
	require.True(t, found, "expected dmxp_channel_depth{channel_id=\"0\"} to be reported")
}
