// Package metrics exports stepping-loop counters and action timings to
// prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

const namespace = "celer"

// Metrics holds the collectors of one run. Collectors are registered on the
// given registerer so tests can use a private registry.
type Metrics struct {
	actionSeconds *prometheus.HistogramVec
	steps         *prometheus.CounterVec
	tracksActive  *prometheus.GaugeVec
	tracksQueued  *prometheus.GaugeVec
	photons       *prometheus.CounterVec
	killed        *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		actionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_seconds",
				Help:      "Wall time of each timed step action",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			},
			[]string{"stream", "action"},
		),
		steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Step iterations executed per stream",
			},
			[]string{"stream"},
		),
		tracksActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracks_active",
				Help:      "Occupied track slots at the start of the last step",
			},
			[]string{"stream"},
		),
		tracksQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracks_queued",
				Help:      "Track initializers waiting for a slot after the last step",
			},
			[]string{"stream"},
		),
		photons: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optical_photons_total",
				Help:      "Optical photons transported per stream",
			},
			[]string{"stream"},
		),
		killed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracks_killed_total",
				Help:      "Tracks killed after exceeding the step limit",
			},
			[]string{"stream"},
		),
	}
}

func streamLabel(s domain.StreamID) string { return strconv.Itoa(int(s)) }

// ObserveAction records one timed action. It satisfies action.Observer.
func (m *Metrics) ObserveAction(stream domain.StreamID, label string, elapsed time.Duration) {
	m.actionSeconds.WithLabelValues(streamLabel(stream), label).Observe(elapsed.Seconds())
}

// ObserveStep records the counters of one step iteration.
func (m *Metrics) ObserveStep(stream domain.StreamID, active, queued int) {
	s := streamLabel(stream)
	m.steps.WithLabelValues(s).Inc()
	m.tracksActive.WithLabelValues(s).Set(float64(active))
	m.tracksQueued.WithLabelValues(s).Set(float64(queued))
}

// AddPhotons records transported optical photons.
func (m *Metrics) AddPhotons(stream domain.StreamID, n int) {
	m.photons.WithLabelValues(streamLabel(stream)).Add(float64(n))
}

// AddKilled records tracks killed at the step limit.
func (m *Metrics) AddKilled(stream domain.StreamID, n int) {
	m.killed.WithLabelValues(streamLabel(stream)).Add(float64(n))
}

// SetupMetricsEndpoint serves /metrics from the gatherer on addr in the
// background.
func SetupMetricsEndpoint(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For(logger.ComponentMetrics).Errorw("Metrics endpoint failed", "addr", addr, "error", err)
		}
	}()

	return server
}
