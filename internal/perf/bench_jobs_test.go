package perf

import (
	"io"
	"testing"

	"github.com/elimika/auditlog/internal/audit"
	"github.com/elimika/auditlog/internal/logview"
)

func TestVisibleWindowStaysBounded(t *testing.T) {
	const (
		rowHeight = 48
		viewport  = 720
		count     = 100000
	)
	limit := logview.MaxWindowRows(viewport, rowHeight, logview.DefaultOverscan)
	for scrollTop := 0; scrollTop < count*rowHeight; scrollTop += 997 {
		w := logview.ComputeVisibleWindow(scrollTop, viewport, rowHeight, logview.DefaultOverscan, count)
		if w.Len() > limit {
			t.Fatalf("window at %d renders %d rows, limit %d", scrollTop, w.Len(), limit)
		}
	}
}

func BenchmarkComputeVisibleWindow(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = logview.ComputeVisibleWindow((i*37)%4800000, 720, 48, logview.DefaultOverscan, 100000)
	}
}

func BenchmarkWriteCSV(b *testing.B) {
	entries := seedEntries(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := audit.WriteCSV(io.Discard, entries); err != nil {
			b.Fatal(err)
		}
	}
}
