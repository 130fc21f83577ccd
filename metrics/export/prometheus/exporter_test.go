package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goRWT "github.com/MrEthical07/goRWT"
)

type fakeSource struct {
	snapshot  goRWT.MetricsSnapshot
	dropped   uint64
	connected bool
}

func (f fakeSource) MetricsSnapshot() goRWT.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                   { return f.dropped }
func (f fakeSource) Connected() bool                        { return f.connected }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRWT.MetricsSnapshot{
			Counters:   map[goRWT.MetricID]uint64{},
			Histograms: map[goRWT.MetricID][]uint64{},
		},
		connected: true,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderNilEngine(t *testing.T) {
	if got := NewPrometheusExporter(nil).Render(); got != "" {
		t.Fatalf("expected empty output for nil engine, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRWT.MetricsSnapshot{
			Counters: map[goRWT.MetricID]uint64{
				goRWT.MetricSignSuccess: 7,
			},
			Histograms: map[goRWT.MetricID][]uint64{
				goRWT.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped:   2,
		connected: true,
	})

	out := exp.Render()
	for _, want := range []string{
		"rwt_sign_success_total 7",
		"rwt_verify_miss_total 0",
		"rwt_verify_latency_seconds_bucket{le=\"0.005\"} 1",
		"rwt_verify_latency_seconds_bucket{le=\"+Inf\"} 36",
		"rwt_verify_latency_seconds_count 36",
		"rwt_store_latency_seconds_count 0",
		"rwt_audit_dropped_total 2",
		"# TYPE rwt_connected gauge",
		"rwt_connected 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if exp.Render() != out {
		t.Fatal("expected identical output for identical snapshots")
	}
}

func TestRenderFromEngine(t *testing.T) {
	engine, err := goRWT.New().WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	out := NewPrometheusExporter(engine).Render()
	if !strings.Contains(out, "rwt_sign_success_total 0") {
		t.Fatalf("expected zeroed counters, got:\n%s", out)
	}
	if !strings.Contains(out, "rwt_connected 0") {
		t.Fatalf("expected disconnected gauge before first use, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRWT.MetricsSnapshot{
			Counters:   map[goRWT.MetricID]uint64{goRWT.MetricVerifyHit: 1},
			Histograms: map[goRWT.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rwt_verify_hit_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRWT.MetricsSnapshot{
			Counters: map[goRWT.MetricID]uint64{
				goRWT.MetricSignSuccess:    1000,
				goRWT.MetricSignFailure:    4,
				goRWT.MetricVerifyHit:      8000,
				goRWT.MetricVerifyMiss:     120,
				goRWT.MetricExtendSuccess:  300,
				goRWT.MetricDestroySuccess: 200,
			},
			Histograms: map[goRWT.MetricID][]uint64{
				goRWT.MetricVerifyLatency: {10, 20, 30, 40, 50, 60, 70, 80},
				goRWT.MetricStoreLatency:  {90, 10, 0, 0, 0, 0, 0, 0},
			},
		},
		connected: true,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
