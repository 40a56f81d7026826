package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/config"
)

func testHandler(t *testing.T, progress ProgressFunc) http.Handler {
	t.Helper()
	metrics := NewMetrics()
	metrics.PagesFetched.Add(3)
	metrics.FetchErrors.WithLabelValues("transient").Inc()
	srv := NewServer(config.MonitoringConfig{ListenAddress: ":0"}, metrics, progress, zap.NewNop())
	return srv.server.Handler
}

func TestMetricsEndpoint(t *testing.T) {
	handler := testHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	text := string(body)
	if !strings.Contains(text, "recordharvester_pages_fetched_total 3") {
		t.Errorf("metrics output missing fetched counter:\n%s", text)
	}
	if !strings.Contains(text, `recordharvester_fetch_errors_total{kind="transient"} 1`) {
		t.Errorf("metrics output missing error counter:\n%s", text)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := testHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var decoded map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("status = %q", decoded["status"])
	}
}

func TestProgressEndpoint(t *testing.T) {
	handler := testHandler(t, func() interface{} {
		return map[string]int{"pages_fetched": 12, "records_written": 4}
	})

	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var decoded map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded["pages_fetched"] != 12 || decoded["records_written"] != 4 {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.PagesFetched.Inc()

	// Registering twice would have panicked with a shared registry; the
	// two counters must also not share state.
	if a.Registry() == b.Registry() {
		t.Error("metrics instances share a registry")
	}
}
