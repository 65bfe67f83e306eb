package telemetry

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: true},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: true},
		{name: "metrics without address", mutate: func(c *Config) { c.Metrics.ListenAddress = "" }, wantErr: true},
		{name: "no service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.NewComponentLogger("stores").WithOwner("pixel-7").WithTest("login").Info("stored")

	out := buf.String()
	assert.Contains(t, out, `"component":"stores"`)
	assert.Contains(t, out, `"owner":"pixel-7"`)
	assert.Contains(t, out, `"test":"login"`)
	assert.Contains(t, out, `"message":"stored"`)
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerContext(t *testing.T) {
	logger := NewNopLogger()
	ctx := logger.WithContext(context.Background())
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestMetricsRecord(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)

	m.RecordStoreOperation("stores.write_test", nil, time.Millisecond)
	m.RecordStoreOperation("stores.write_test", errors.New("boom"), time.Millisecond)
	m.RecordTestWritten(1)
	m.RecordTestWritten(3)
	m.RecordReportSubmitted(false, 2, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("stores.write_test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("stores.write_test", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.testsWritten.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.testsWritten.WithLabelValues("overwrite")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reportSteps.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportSteps.WithLabelValues("error")))
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.RecordStoreOperation("op", nil, time.Second)
		m.RecordTestWritten(1)
		m.RecordReportSubmitted(true, 1, 0)
		m.RecordImportedFile("imported")
	})
	assert.Nil(t, m.Registry())
}

func TestEventPublisherSync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true})
	require.NoError(t, err)

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, func(e Event) bool {
		return e.Type == EventTypeTestWritten
	})

	require.NoError(t, ep.PublishTestWritten("default", "login", 2))
	require.NoError(t, ep.PublishSchemaMigrated(3))

	require.Len(t, got, 1)
	assert.Equal(t, "login", got[0].TestName)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
	require.NoError(t, ep.Shutdown(context.Background()))
}

func TestEventPublisherAsyncDrainsOnShutdown(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, EnableAsync: true, BufferSize: 16})
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	ep.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, ep.PublishReportSubmitted("default", "login", "run", true))
	}
	require.NoError(t, ep.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
	assert.Error(t, ep.PublishImportCompleted("dir", 1, 0))
}

func TestOperationRecordsMetrics(t *testing.T) {
	tel := NewNop()
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)
	tel.Metrics = m

	op := tel.StartOperation(context.Background(), "stores.read_tests", AttrOwner.String("default"))
	op.End(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("stores.read_tests", "ok")))
}

func TestImportCompletedLevels(t *testing.T) {
	tests := []struct {
		name     string
		imported int
		failed   int
		want     string
	}{
		{name: "clean", imported: 3, want: EventLevelInfo},
		{name: "nothing to do", want: EventLevelInfo},
		{name: "partial", imported: 1, failed: 1, want: EventLevelWarning},
		{name: "all failed", failed: 2, want: EventLevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := NewEventPublisher(EventsConfig{Enabled: true})
			require.NoError(t, err)

			var got []Event
			ep.Subscribe(func(e Event) { got = append(got, e) }, nil)
			require.NoError(t, ep.PublishImportCompleted("tests", tt.imported, tt.failed))

			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Level)
			assert.Equal(t, tt.failed, got[0].Data["failed"])
		})
	}
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))

	tracer, err := NewTracer(TracingConfig{Enabled: true, Exporter: "none", SamplingRate: 1}, "teststore", "test", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	ctx, span := tracer.StartSpan(context.Background(), "stores.write_test")
	defer span.End()
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceID(ctx))
	assert.Len(t, TraceID(ctx), 32)
}

func TestOperationLoggerCarriesTraceID(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := NewTracer(TracingConfig{Enabled: true, Exporter: "none", SamplingRate: 1}, "teststore", "test", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	tel := NewNop()
	tel.Tracer = tracer
	tel.Logger = NewLoggerWithWriter(LoggingConfig{Level: "info", Format: "json"}, &buf)

	op := tel.StartOperation(context.Background(), "importer.import", AttrImportDir.String("tests"))
	op.Logger.Info("scanned")
	op.End(nil)

	traceID := TraceID(op.Ctx)
	require.NotEmpty(t, traceID)
	assert.Contains(t, buf.String(), `"trace_id":"`+traceID+`"`)
	assert.Contains(t, buf.String(), `"operation":"importer.import"`)
}

func TestTelemetryContext(t *testing.T) {
	assert.Nil(t, FromTelemetryContext(context.Background()))

	var buf bytes.Buffer
	tel := NewNop()
	tel.Logger = NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	ctx := tel.WithContext(context.Background())
	assert.Same(t, tel, FromTelemetryContext(ctx))
	assert.Same(t, tel.Logger, FromContext(ctx))

	FromContext(ctx).Zerolog().Debug().Str("owner", "default").Msg("zerolog passthrough")
	assert.Contains(t, buf.String(), `"owner":"default"`)
}
