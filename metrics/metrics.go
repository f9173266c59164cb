// Package metrics exposes Prometheus instrumentation for the
// authenticated transport: verification outcomes, replay-cache
// occupancy, frame traffic, and streamed bytes, served on a dedicated
// metrics listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification outcome label values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authnet_verifications_total",
		Help: "Message verifications by outcome.",
	}, []string{"outcome"})

	replayCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "authnet_replay_cache_entries",
		Help: "Digests currently held by the replay cache.",
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authnet_frames_total",
		Help: "Frames moved over the socket transport by direction.",
	}, []string{"direction"})

	streamedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authnet_streamed_bytes_total",
		Help: "Raw binary payload bytes moved over the transport.",
	})

	handshakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authnet_handshakes_total",
		Help: "Secure channel handshakes by result.",
	}, []string{"result"})
)

// RecordVerification counts one verification with the given outcome.
func RecordVerification(outcome string) {
	verificationsTotal.WithLabelValues(outcome).Inc()
}

// SetReplayCacheSize records the current replay-cache occupancy.
func SetReplayCacheSize(n int) {
	replayCacheSize.Set(float64(n))
}

// RecordFrameSent counts one outbound frame.
func RecordFrameSent() {
	framesTotal.WithLabelValues("sent").Inc()
}

// RecordFrameReceived counts one inbound frame.
func RecordFrameReceived() {
	framesTotal.WithLabelValues("received").Inc()
}

// RecordStreamedBytes counts raw payload bytes moved.
func RecordStreamedBytes(n int) {
	streamedBytesTotal.Add(float64(n))
}

// RecordHandshake counts one handshake attempt with its result
// ("ok" or "failed").
func RecordHandshake(result string) {
	handshakesTotal.WithLabelValues(result).Inc()
}

// MetricsServer serves the Prometheus scrape endpoint on its own
// listener, separate from the service's API address.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for addr. An empty addr is allowed and
// yields a server whose ListenAndServe returns immediately; callers gate
// startup on the address being configured.
func New(addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv.Addr == "" {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
