package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定した名前とラベルに一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordAuthAttempt_CountsByOperationAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthAttempt("sign_in", "ok")
	c.RecordAuthAttempt("sign_in", "ok")
	c.RecordAuthAttempt("sign_in", "WrongPassword")
	c.RecordAuthAttempt("register", "EmailInUse")

	if v := findMetric(t, reg, "gamehub_auth_attempts_total", map[string]string{"operation": "sign_in", "result": "ok"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("sign_in ok = %v, want 2", v)
	}
	if v := findMetric(t, reg, "gamehub_auth_attempts_total", map[string]string{"operation": "sign_in", "result": "WrongPassword"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("sign_in WrongPassword = %v, want 1", v)
	}
	if v := findMetric(t, reg, "gamehub_auth_attempts_total", map[string]string{"operation": "register", "result": "EmailInUse"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("register EmailInUse = %v, want 1", v)
	}
}

func TestRecordGuardDecision_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("denied")
	c.RecordGuardDecision("authorized")
	c.RecordGuardDecision("denied")

	if v := findMetric(t, reg, "gamehub_guard_decisions_total", map[string]string{"decision": "denied"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("denied = %v, want 2", v)
	}
}

func TestRecordCatalogFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCatalogFailure("http")

	if v := findMetric(t, reg, "gamehub_catalog_failures_total", map[string]string{"source": "http"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("catalog failures = %v, want 1", v)
	}
}

func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(302)
	c.RecordHTTPStatus(200)

	if v := findMetric(t, reg, "gamehub_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("status 200 = %v, want 2", v)
	}
	if v := findMetric(t, reg, "gamehub_http_status_total", map[string]string{"status_code": "302"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("status 302 = %v, want 1", v)
	}
}

func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)
	c.RecordRequestLatency(2 * time.Second)

	h := findMetric(t, reg, "gamehub_request_latency_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.1 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample sum = %v, want ~2.15", h.GetSampleSum())
	}
}

func TestRecordSessionsDeleted_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsDeleted(3)
	c.RecordSessionsDeleted(0)

	if v := findMetric(t, reg, "gamehub_sessions_deleted_total", nil).GetCounter().GetValue(); v != 3 {
		t.Errorf("sessions deleted = %v, want 3", v)
	}
}

func TestObserveActiveSessions_ReadsAtScrapeTime(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	n := 1
	c.ObserveActiveSessions(func() int { return n })
	n = 4

	if v := findMetric(t, reg, "gamehub_active_sessions", nil).GetGauge().GetValue(); v != 4 {
		t.Errorf("active sessions = %v, want 4", v)
	}
}
