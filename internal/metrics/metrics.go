// Package metrics instruments the kvs/dsal/cfs layers with Prometheus
// counters and histograms, following the teacher's heavy
// github.com/prometheus/client_golang use in its own monitoring layer:
// one counter per op kind plus an op-latency histogram, registered on a
// private registry so a test process can spin up as many independent
// Metrics instances as it needs without colliding on the default
// registerer.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this server exports.
type Metrics struct {
	registry *prometheus.Registry

	kvOps  *prometheus.CounterVec
	dsOps  *prometheus.CounterVec
	cfsOps *prometheus.CounterVec

	cfsLatency *prometheus.HistogramVec
	dsLatency  *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		kvOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvsfs",
			Subsystem: "kvs",
			Name:      "ops_total",
			Help:      "KVS driver operations, by op and result.",
		}, []string{"op", "result"}),
		dsOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvsfs",
			Subsystem: "dsal",
			Name:      "ops_total",
			Help:      "DSAL backend operations, by op and result.",
		}, []string{"op", "result"}),
		cfsOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvsfs",
			Subsystem: "cfs",
			Name:      "ops_total",
			Help:      "CFS filesystem operations, by op and result.",
		}, []string{"op", "result"}),
		cfsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvsfs",
			Subsystem: "cfs",
			Name:      "op_duration_seconds",
			Help:      "CFS filesystem operation latency, by op.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		dsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvsfs",
			Subsystem: "dsal",
			Name:      "io_op_duration_seconds",
			Help:      "DSAL IO op latency from submit to terminal state, by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"io_type"}),
	}
	reg.MustRegister(m.kvOps, m.dsOps, m.cfsOps, m.cfsLatency, m.dsLatency)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveKVOp records one KVS driver call (spec §4.A: set/get/del/itr_*).
func (m *Metrics) ObserveKVOp(op string, err error) {
	m.kvOps.WithLabelValues(op, result(err)).Inc()
}

// ObserveDSOp records one DSAL synchronous/control call (spec §4.B:
// obj_create/delete/open/close/resize).
func (m *Metrics) ObserveDSOp(op string, err error) {
	m.dsOps.WithLabelValues(op, result(err)).Inc()
}

// ObserveDSIOLatency records one IO op's submit-to-terminal duration (spec
// §4.B's io_op_submit/io_op_wait pair).
func (m *Metrics) ObserveDSIOLatency(ioType string, d time.Duration) {
	m.dsLatency.WithLabelValues(ioType).Observe(d.Seconds())
}

// ObserveCFSOp records one CFS namespace/attribute/data-path operation and
// its latency (spec §4.F-§4.H).
func (m *Metrics) ObserveCFSOp(op string, start time.Time, err error) {
	m.cfsOps.WithLabelValues(op, result(err)).Inc()
	m.cfsLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler serving this instance's collectors in
// the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing Handler() at addr, returning once
// the listener is closed or ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
