// Package metrics contains the prometheus instrumentation and the pull
// server exposing it.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// CommitsTotal counts accepted commitments, labelled by instance kind.
	CommitsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "tlock_commits_total",
		Help: "Accepted sealed commitments.",
	}, []string{"kind"})

	// ResolvesTotal counts resolution attempts by result.
	ResolvesTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "tlock_resolves_total",
		Help: "Round resolution attempts.",
	}, []string{"kind", "result"})

	// SecretUnavailableRetries counts resolutions deferred because the slot
	// secret was not attested yet.
	SecretUnavailableRetries = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "tlock_secret_unavailable_retries_total",
		Help: "Resolutions deferred waiting for the slot secret.",
	})

	// OpenRounds tracks rounds currently accepting commitments.
	OpenRounds = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "tlock_open_rounds",
		Help: "Rounds currently open for commitments.",
	})
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns the scrape handler for the package registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// MetricsServer serves the scrape endpoint on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server on addr. An empty addr is allowed; the
// resulting server is a no-op so callers do not need to special-case it.
func New(addr string) (*MetricsServer, error) {
	if addr == "" {
		return &MetricsServer{}, nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
