package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/ohlcv-gatherer/internal/ensemble"
	"github.com/rickgao/ohlcv-gatherer/internal/ingest"
	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

func TestCollector_CycleDone(t *testing.T) {
	c := New()
	eth := model.MustInstrument("ETH-EUR")

	c.CycleDone(ensemble.Outcome{
		Instrument: eth,
		Status:     ensemble.StatusOK,
		Duration:   200 * time.Millisecond,
		Result: ingest.CycleResult{
			Instrument:   eth,
			Appended:     300,
			Sentinels:    1,
			Watermark:    1609729200,
			HasWatermark: true,
		},
	})
	c.CycleDone(ensemble.Outcome{
		Instrument: eth,
		Status:     ensemble.StatusFailed,
		Err:        errors.New("bad gateway"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycles.WithLabelValues("ETH-EUR", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycles.WithLabelValues("ETH-EUR", "failed")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.rows.WithLabelValues("ETH-EUR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sentinels.WithLabelValues("ETH-EUR")))
	assert.Equal(t, 1609729200.0, testutil.ToFloat64(c.watermark.WithLabelValues("ETH-EUR")))
}

func TestCollector_PassDone(t *testing.T) {
	c := New()
	c.PassDone(ensemble.PassReport{
		Duration: time.Second,
		Outcomes: []ensemble.Outcome{
			{Status: ensemble.StatusOK},
			{Status: ensemble.StatusSkipped},
			{Status: ensemble.StatusAbandoned},
		},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(c.passSkipped))
}

func TestCollector_MirrorRows(t *testing.T) {
	c := New()
	c.MirrorRows("inserted", 10)
	c.MirrorRows("inserted", 0)
	c.MirrorRows("failed", 2)
	assert.Equal(t, 10.0, testutil.ToFloat64(c.mirrorRows.WithLabelValues("inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.mirrorRows.WithLabelValues("failed")))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.MirrorRows("inserted", 1)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `gatherer_mirror_rows_total{result="inserted"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
