package otel

import (
	"context"
	"sync"
	"testing"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot ledgerAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() ledgerAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := ledgerAuth.MetricsSnapshot{
		Counters:   make(map[ledgerAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[ledgerAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: ledgerAuth.MetricsSnapshot{
			Counters: map[ledgerAuth.MetricID]uint64{
				ledgerAuth.MetricLoginSuccess: 3,
				ledgerAuth.MetricTOTPEnabled:  1,
			},
			Histograms: map[ledgerAuth.MetricID][]uint64{
				ledgerAuth.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 4,
	}

	exp, err := NewExporter(provider.Meter("ledgerauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findSum(rm, "ledgerauth_login_success_total"); !ok || v != 3 {
		t.Fatalf("expected login_success=3, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "ledgerauth_totp_enabled_total"); !ok || v != 1 {
		t.Fatalf("expected totp_enabled=1, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "ledgerauth_audit_dropped_total"); !ok || v != 4 {
		t.Fatalf("expected audit_dropped=4, got %d (found=%v)", v, ok)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader(t)

	if _, err := NewExporter(provider.Meter("ledgerauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: ledgerAuth.MetricsSnapshot{
			Counters: map[ledgerAuth.MetricID]uint64{
				ledgerAuth.MetricLoginSuccess: 1,
			},
			Histograms: map[ledgerAuth.MetricID][]uint64{},
		},
	}

	exp, err := NewExporter(provider.Meter("ledgerauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[ledgerAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
