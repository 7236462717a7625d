package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHandler_ExposesRecordedMetrics はスクレイプ結果に記録済みの全系列が含まれることを検証する。
func TestHandler_ExposesRecordedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthAttempt("sign_in", "ok")
	c.RecordGuardDecision("denied")
	c.RecordCatalogFailure("file")
	c.RecordHTTPStatus(http.StatusNotFound)
	c.RecordRequestLatency(25 * time.Millisecond)
	c.RecordSessionsDeleted(3)
	c.ObserveActiveSessions(func() int { return 2 })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, want := range []string{
		`gamehub_auth_attempts_total{operation="sign_in",result="ok"} 1`,
		`gamehub_guard_decisions_total{decision="denied"} 1`,
		`gamehub_catalog_failures_total{source="file"} 1`,
		"gamehub_active_sessions 2",
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("response should contain %q", want)
		}
	}
}

// TestHandler_EmptyRegistry は未登録のレジストリでも200を返すことを検証する。
func TestHandler_EmptyRegistry(t *testing.T) {
	w := httptest.NewRecorder()
	Handler(prometheus.NewRegistry()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
