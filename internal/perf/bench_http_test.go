package perf

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elimika/auditlog/internal/audit"
	audithttp "github.com/elimika/auditlog/internal/audit/http"
	_ "github.com/elimika/auditlog/testing"
)

func seedEntries(n int) []audit.LogEntry {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	statuses := audit.Statuses()
	entries := make([]audit.LogEntry, n)
	for i := range entries {
		entries[i] = audit.LogEntry{
			ID:        fmt.Sprintf("entry-%06d", i),
			Event:     fmt.Sprintf("event.%02d", i%40),
			Actor:     &audit.Actor{Email: fmt.Sprintf("user%03d@example.com", i%300)},
			Resource:  &audit.Resource{Type: "document", ID: fmt.Sprintf("doc-%d", i%900)},
			Status:    statuses[i%len(statuses)],
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			IPAddress: "10.0.0.1",
		}
	}
	return entries
}

func newAuditRouter(b testing.TB, n int) http.Handler {
	b.Helper()
	svc := audit.NewService(audit.NewMemoryRepository(seedEntries(n)...), audit.ServiceConfig{})
	r := chi.NewRouter()
	audithttp.NewHandler(nil, svc).MountRoutes(r)
	return r
}

func TestAuditListLatencyTargets(t *testing.T) {
	router := newAuditRouter(t, 5000)
	scenarios := []struct {
		name      string
		target    string
		threshold time.Duration
	}{
		{name: "first page", target: "/audit/logs", threshold: 250 * time.Millisecond},
		{name: "deep page", target: "/audit/logs?page=80", threshold: 250 * time.Millisecond},
		{name: "filtered search", target: "/audit/logs?search=user042&status=FAILED", threshold: 250 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			start := time.Now()
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, scenario.target, nil))
			samples = append(samples, time.Since(start))
			if rr.Code != http.StatusOK {
				t.Fatalf("%s: unexpected status %d", scenario.name, rr.Code)
			}
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkAuditListHandler(b *testing.B) {
	router := newAuditRouter(b, 5000)
	req := httptest.NewRequest(http.MethodGet, "/audit/logs?page=10&status=SUCCESS", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
