// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2alab/pkg/config"
)

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(nil, metrics))
	r.Get("/v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/tasks/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	metrics.RecordTask(context.Background(), "echo", "completed")
	metrics.RecordPushDelivery(context.Background(), "delivered")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	out := string(body)
	assert.Contains(t, out, "a2alab_http_requests_total")
	assert.Contains(t, out, `route="/v1/tasks/{id}"`)
	assert.Contains(t, out, `status="404"`)
	assert.Contains(t, out, "a2alab_tasks_total")
	assert.Contains(t, out, "a2alab_push_deliveries_total")
}

func TestResponseWriter_FlushPassthrough(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	var _ http.Flusher = w
	_, _ = w.Write([]byte("data: x\n\n"))
	w.Flush()

	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, w.statusCode)
}

func TestNilMetricsAndTracerAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest(context.Background(), "GET", "/", 200, 0)
	m.RecordTask(context.Background(), "echo", "completed")
	require.NoError(t, m.Shutdown(context.Background()))

	var tr *Tracer
	_, span := tr.Start(context.Background(), "noop")
	span.End()
	require.NoError(t, tr.Shutdown(context.Background()))
}

func TestNewTracer_DisabledReturnsNil(t *testing.T) {
	tr, err := NewTracer(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestNewTracer_Exporters(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
	}{
		{"stdout", config.TracingConfig{Enabled: true, Exporter: "stdout", ServiceName: "a2alab-test"}},
		{"otlp", config.TracingConfig{Enabled: true, Exporter: "otlp", Endpoint: "localhost:4317", Insecure: true, ServiceName: "a2alab-test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.SetDefaults()

			tr, err := NewTracer(context.Background(), cfg)
			require.NoError(t, err)
			require.NotNil(t, tr)

			_, span := tr.Start(context.Background(), "test-span")
			assert.True(t, span.SpanContext().IsValid())
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = tr.Shutdown(ctx)
		})
	}
}

func TestNewTracer_UnknownExporter(t *testing.T) {
	_, err := NewTracer(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin", SamplingRate: 1})
	assert.ErrorContains(t, err, "unsupported exporter")
}
