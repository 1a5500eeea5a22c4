package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
)

type fakeSource struct {
	snapshot ledgerAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() ledgerAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: ledgerAuth.MetricsSnapshot{
			Counters:   map[ledgerAuth.MetricID]uint64{},
			Histograms: map[ledgerAuth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: ledgerAuth.MetricsSnapshot{
			Counters: map[ledgerAuth.MetricID]uint64{
				ledgerAuth.MetricLoginSuccess:     7,
				ledgerAuth.MetricRecoveryCodeUsed: 2,
			},
			Histograms: map[ledgerAuth.MetricID][]uint64{
				ledgerAuth.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"ledgerauth_login_success_total 7",
		"ledgerauth_recovery_code_used_total 2",
		"ledgerauth_totp_enabled_total 0",
		"ledgerauth_verify_latency_seconds_bucket{le=\"0.005\"} 1",
		"ledgerauth_verify_latency_seconds_bucket{le=\"+Inf\"} 36",
		"ledgerauth_verify_latency_seconds_count 36",
		"ledgerauth_audit_dropped_total 2",
		"# TYPE ledgerauth_login_success_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: ledgerAuth.MetricsSnapshot{
			Counters:   map[ledgerAuth.MetricID]uint64{ledgerAuth.MetricLogout: 1},
			Histograms: map[ledgerAuth.MetricID][]uint64{},
		},
	})
	if out := exp.Render(); strings.Contains(out, "verify_latency") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
}

func TestServeHTTPWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: ledgerAuth.MetricsSnapshot{
			Counters:   map[ledgerAuth.MetricID]uint64{ledgerAuth.MetricLoginSuccess: 1},
			Histograms: map[ledgerAuth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ledgerauth_login_success_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}
