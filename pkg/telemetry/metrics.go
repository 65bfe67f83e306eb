package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the test store.
type Metrics struct {
	config MetricsConfig

	storeOperations *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec

	testsWritten     *prometheus.CounterVec
	reportsSubmitted *prometheus.CounterVec
	reportSteps      *prometheus.CounterVec

	importedFiles *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a Metrics whose recorders are no-ops.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		storeOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of store operations by outcome",
			},
			[]string{"operation", "status"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of store operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		testsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tests_written_total",
				Help:      "Total number of test writes, split by first write and overwrite",
			},
			[]string{"kind"},
		),
		reportsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_submitted_total",
				Help:      "Total number of stored execution reports",
			},
			[]string{"success"},
		),
		reportSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_steps_total",
				Help:      "Total number of reported steps by result",
			},
			[]string{"result"},
		),
		importedFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imported_files_total",
				Help:      "Total number of test definition files processed by the importer",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.storeOperations,
		m.storeDuration,
		m.testsWritten,
		m.reportsSubmitted,
		m.reportSteps,
		m.importedFiles,
	)

	return m, nil
}

// RecordStoreOperation records one store operation with its outcome and duration.
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	if m.storeOperations == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeOperations.WithLabelValues(operation, status).Inc()
	m.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTestWritten counts a test write. version 1 is a first write.
func (m *Metrics) RecordTestWritten(version int) {
	if m.testsWritten == nil {
		return
	}
	kind := "overwrite"
	if version <= 1 {
		kind = "create"
	}
	m.testsWritten.WithLabelValues(kind).Inc()
}

// RecordReportSubmitted counts a stored report and its step results.
func (m *Metrics) RecordReportSubmitted(success bool, passed, failed int) {
	if m.reportsSubmitted == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.reportsSubmitted.WithLabelValues(label).Inc()
	m.reportSteps.WithLabelValues("passed").Add(float64(passed))
	m.reportSteps.WithLabelValues("error").Add(float64(failed))
}

// RecordImportedFile counts one importer file outcome (imported, failed, skipped).
func (m *Metrics) RecordImportedFile(status string) {
	if m.importedFiles == nil {
		return
	}
	m.importedFiles.WithLabelValues(status).Inc()
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
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

// StartMetricsServer serves metrics until ctx is cancelled.
// Serve errors are reported on the returned channel.
func (m *Metrics) StartMetricsServer(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	if !m.config.Enabled {
		close(errCh)
		return errCh
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		defer close(errCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh
}
