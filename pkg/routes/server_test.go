package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/routes/health"
)

func TestServer_Routes(t *testing.T) {
	checker := health.NewChecker("test")
	checker.SetReady(true)
	server := NewServer(ServerConfig{ServiceName: "fern-test"}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), checker)

	metrics.RecordBatch("ok", 3, 0.01)

	tests := []struct {
		path     string
		code     int
		contains string
	}{
		{path: "/api/v1/health", code: http.StatusOK, contains: `"status":"healthy"`},
		{path: "/api/v1/health/live", code: http.StatusOK, contains: "alive"},
		{path: "/api/v1/health/ready", code: http.StatusOK, contains: "ready"},
		{path: "/metrics", code: http.StatusOK, contains: "fern_processor_batches_total"},
		{path: "/api/v1/events", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
		})
	}
}

func TestServer_Dependency(t *testing.T) {
	server := NewServer(ServerConfig{}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), health.NewChecker("test"))
	assert.Equal(t, "ops_server", server.GetName())
	assert.Empty(t, server.DependsOn())
}
