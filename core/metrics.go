package core

// metrics.go exposes Prometheus counters and gauges for the storage and
// sync subsystems, and an HTTP /metrics endpoint. Grounded on the
// teacher's HealthLogger (core/system_health_logging.go), which built a
// private prometheus.Registry, registered a handful of gauges/counters
// and served them via promhttp; the same shape is reused here with
// blockchain-sync metrics in place of node/ledger health ones.

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics collects the counters and gauges the sync and storage
// subsystems update as they run.
type Metrics struct {
	registry *prometheus.Registry
	logger   *log.Logger

	blocksFetched   prometheus.Counter
	blocksRejected  prometheus.Counter
	packsWritten    prometheus.Counter
	packBytes       prometheus.Counter
	validationFails *prometheus.CounterVec
	headEpochGauge  prometheus.Gauge
	headSlotGauge   prometheus.Gauge
	utxoSetGauge    prometheus.Gauge
	peerCountGauge  prometheus.Gauge
}

// NewMetrics builds and registers a fresh metric set.
func NewMetrics(logger *log.Logger) *Metrics {
	if logger == nil {
		logger = log.StandardLogger()
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{registry: reg, logger: logger}

	m.blocksFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cardanogo_blocks_fetched_total",
		Help: "Total blocks fetched from peers",
	})
	m.blocksRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cardanogo_blocks_rejected_total",
		Help: "Total blocks that failed VerifyBlock",
	})
	m.packsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cardanogo_packs_written_total",
		Help: "Total epoch packs finalized",
	})
	m.packBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cardanogo_pack_bytes_total",
		Help: "Total bytes written to pack files",
	})
	m.validationFails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cardanogo_validation_errors_total",
		Help: "Validation errors by kind",
	}, []string{"reason"})
	m.headEpochGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cardanogo_head_epoch",
		Help: "Epoch of the local HEAD tag",
	})
	m.headSlotGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cardanogo_head_slot",
		Help: "Local slot of the local HEAD tag",
	})
	m.utxoSetGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cardanogo_utxo_set_size",
		Help: "Number of live UTxOs tracked by the verifier",
	})
	m.peerCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cardanogo_peer_count",
		Help: "Number of configured sync peers",
	})

	reg.MustRegister(
		m.blocksFetched,
		m.blocksRejected,
		m.packsWritten,
		m.packBytes,
		m.validationFails,
		m.headEpochGauge,
		m.headSlotGauge,
		m.utxoSetGauge,
		m.peerCountGauge,
	)

	return m
}

func (m *Metrics) ObserveBlockFetched()            { m.blocksFetched.Inc() }
func (m *Metrics) ObserveBlockRejected()           { m.blocksRejected.Inc() }
func (m *Metrics) ObservePackWritten(bytes int)    { m.packsWritten.Inc(); m.packBytes.Add(float64(bytes)) }
func (m *Metrics) ObserveValidationError(reason string) {
	m.validationFails.WithLabelValues(reason).Inc()
}
func (m *Metrics) SetHead(date BlockDate) {
	m.headEpochGauge.Set(float64(date.Epoch))
	m.headSlotGauge.Set(float64(date.LocalSlot))
}
func (m *Metrics) SetUtxoSetSize(n int)   { m.utxoSetGauge.Set(float64(n)) }
func (m *Metrics) SetPeerCount(n int)     { m.peerCountGauge.Set(float64(n)) }

// Serve starts an HTTP server exposing /metrics on addr. It returns the
// *http.Server so callers can manage its shutdown.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Errorf("metrics: server stopped: %v", err)
		}
	}()
	return srv
}

// Shutdown gracefully stops a server started by Serve.
func (m *Metrics) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
