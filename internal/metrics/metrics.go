// Package metrics exposes dispatch outcomes and table sizes to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"laxenta/internal/registry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "laxenta"

// Metrics implements registry.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	outcomes *prometheus.CounterVec
	live     prometheus.Gauge
	dropped  *prometheus.CounterVec
	sweeps   *prometheus.CounterVec
}

// New registers collectors on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_outcomes_total",
			Help:      "Component interactions dispatched, by outcome.",
		}, []string{"outcome"}),
		live: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_live",
			Help:      "Registrations currently held in the action table.",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_dropped_total",
			Help:      "Interactions dropped before dispatch, by reason.",
		}, []string{"reason"}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_entries_total",
			Help:      "Expired entries reclaimed by the janitor, by table.",
		}, []string{"table"}),
	}
}

// ObserveDispatch counts one dispatch result.
func (m *Metrics) ObserveDispatch(k registry.Kind) {
	m.outcomes.WithLabelValues(k.String()).Inc()
}

// ObserveSize records the current action table size.
func (m *Metrics) ObserveSize(live int) {
	m.live.Set(float64(live))
}

// ObserveDrop counts an interaction dropped at the boundary (duplicate, burst).
func (m *Metrics) ObserveDrop(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

// ObserveSweep counts entries reclaimed from table.
func (m *Metrics) ObserveSweep(table string, n int) {
	if n > 0 {
		m.sweeps.WithLabelValues(table).Add(float64(n))
	}
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Serve runs the metrics server on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
