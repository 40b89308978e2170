package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openfroyo/pluginlist/pkg/plugins"
)

// Metrics provides Prometheus metrics for plugin list reads and writes. It implements
// plugins.Observer.
type Metrics struct {
	config MetricsConfig

	manifestWrites *prometheus.CounterVec
	manifestReads  *prometheus.CounterVec
	invalidNames   prometheus.Counter
	activePlugins  prometheus.Gauge
	listedPlugins  prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		manifestWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_writes_total",
				Help:      "Total number of plugin list writes by result",
			},
			[]string{"result"},
		),
		manifestReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_reads_total",
				Help:      "Total number of plugin list reads by result",
			},
			[]string{"result"},
		),
		invalidNames: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_plugin_names_total",
				Help:      "Total number of active plugins dropped because their name could not be encoded",
			},
		),
		activePlugins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_plugins",
				Help:      "Number of active plugins in the last written plugin list",
			},
		),
		listedPlugins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "listed_plugins",
				Help:      "Number of plugin lines in the last read plugin list",
			},
		),
	}

	registry.MustRegister(
		m.manifestWrites,
		m.manifestReads,
		m.invalidNames,
		m.activePlugins,
		m.listedPlugins,
	)

	return m, nil
}

// ObserveWrite records the outcome of a plugin list write.
func (m *Metrics) ObserveWrite(event plugins.WriteEvent) {
	if m.registry == nil {
		return
	}
	m.manifestWrites.WithLabelValues(string(event.Result)).Inc()
	if event.Result == plugins.WriteFailed {
		return
	}
	m.invalidNames.Add(float64(len(event.Invalid)))
	m.activePlugins.Set(float64(event.Active))
}

// ObserveRead records the outcome of a plugin list read.
func (m *Metrics) ObserveRead(event plugins.ReadEvent) {
	if m.registry == nil {
		return
	}
	m.manifestReads.WithLabelValues(string(event.Result)).Inc()
	if event.Result == plugins.ReadOK {
		m.listedPlugins.Set(float64(event.Listed))
	}
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer(logger zerolog.Logger) error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Metrics are optional, keep running
			logger.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()

	return nil
}

// Close stops the metrics server if it is running.
func (m *Metrics) Close() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}
