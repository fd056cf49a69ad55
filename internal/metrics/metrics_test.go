package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("indicadores")
	b := NewCollector("indicadores")
	a.CacheHit("pages")
	if got := testutil.ToFloat64(b.CacheHitsTotal.WithLabelValues("pages")); got != 0 {
		t.Fatalf("collectors share state: %v", got)
	}
	if got := testutil.ToFloat64(a.CacheHitsTotal.WithLabelValues("pages")); got != 1 {
		t.Fatalf("hits = %v", got)
	}
}

func TestRecordDatasetLoad(t *testing.T) {
	c := NewCollector("indicadores")
	c.RecordDatasetLoad("seguranca", "memory", 42, time.Millisecond, nil)
	c.RecordDatasetLoad("seguranca", "memory", 0, time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c.DatasetRows.WithLabelValues("seguranca")); got != 42 {
		t.Fatalf("rows = %v", got)
	}
	if got := testutil.ToFloat64(c.DatasetErrorsTotal.WithLabelValues("seguranca", "memory")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("indicadores")
	c.RecordHTTPRequest("/api/topics/{topic}", "GET", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "indicadores_http_requests_total") {
		t.Fatalf("metric missing from exposition")
	}
}
