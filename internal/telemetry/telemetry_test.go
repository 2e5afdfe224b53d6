package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil config", cfg: nil},
		{name: "disabled ignores bad values", cfg: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 7}}},
		{name: "valid", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}}},
		{
			name:    "sampling above one",
			cfg:     &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "sampling must be between",
		},
		{
			name:    "negative sampling",
			cfg:     &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			wantErr: "sampling must be between",
		},
		{
			name:    "endpoint with path",
			cfg:     &Config{Enabled: true, Endpoint: "/v1/traces"},
			wantErr: "endpoint must be host:port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	var cfg *Config
	assert.Equal(t, DefaultServiceName, cfg.serviceName())
	assert.Equal(t, DefaultEndpoint, cfg.endpoint())
	assert.Equal(t, "unknown", cfg.serviceVersion())
	assert.False(t, cfg.tracingEnabled())
	assert.False(t, cfg.metricsEnabled())

	var tracing *TracingConfig
	assert.InDelta(t, DefaultSampling, tracing.SamplingRatio(), 1e-9)
	assert.InDelta(t, 0.25, (&TracingConfig{Sampling: 0.25}).SamplingRatio(), 1e-9)

	cfg = &Config{Enabled: false, Tracing: &TracingConfig{Enabled: true}, Metrics: &MetricsConfig{Enabled: true}}
	assert.False(t, cfg.tracingEnabled(), "global switch wins")
	assert.False(t, cfg.metricsEnabled(), "global switch wins")
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider())
	require.NotNil(t, tel.MeterProvider())
	assert.NotNil(t, tel.Tracer())

	_, isSDKTracer := tel.TracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDKTracer)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

func newRouter(handler http.HandlerFunc, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Post("/sync/{method}", handler)
	return r
}

func TestServerMetrics_Middleware(t *testing.T) {
	t.Parallel()

	t.Run("nil metrics pass through", func(t *testing.T) {
		t.Parallel()

		var m *ServerMetrics
		called := false
		h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
	})

	t.Run("records route pattern and status", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		m, err := NewServerMetrics(mp)
		require.NoError(t, err)

		router := newRouter(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}, m.Middleware)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/meta", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))

		var found bool
		for _, scope := range rm.ScopeMetrics {
			for _, metric := range scope.Metrics {
				if metric.Name != "colsync_server_request_duration_seconds" {
					continue
				}
				hist, ok := metric.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				require.Len(t, hist.DataPoints, 1)
				route, _ := hist.DataPoints[0].Attributes.Value("route")
				status, _ := hist.DataPoints[0].Attributes.Value("status_code")
				assert.Equal(t, "/sync/{method}", route.AsString())
				assert.Equal(t, "403", status.AsString())
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("nil provider pass through", func(t *testing.T) {
		t.Parallel()

		called := false
		h := TracingMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
	})

	t.Run("names span by route", func(t *testing.T) {
		t.Parallel()

		exporter := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer func() { _ = tp.Shutdown(context.Background()) }()

		router := newRouter(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, TracingMiddleware(tp))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sync/chunk", nil))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "POST /sync/{method}", spans[0].Name)
		assert.Contains(t, spans[0].Attributes, attribute.Int("http.response.status_code", http.StatusServiceUnavailable))
		assert.Equal(t, "Error", spans[0].Status.Code.String())
	})
}
