package logview

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/elimika/auditlog/internal/audit"
)

// ExportContentType is the MIME type of exported files.
const ExportContentType = "text/csv;charset=utf-8"

// ErrNothingToExport is returned when no entries are loaded. It is
// informational, not a failure.
var ErrNothingToExport = errors.New("nothing to export yet")

// ExportFile is a serialized export ready to be written.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportFileName embeds the generation time in milliseconds.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("audit-log-export-%d.csv", now.UnixMilli())
}

// Export serializes every loaded entry, not only the visible window.
func Export(entries []audit.LogEntry, now time.Time) (ExportFile, error) {
	if len(entries) == 0 {
		return ExportFile{}, ErrNothingToExport
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, entries); err != nil {
		return ExportFile{}, fmt.Errorf("logview: export: %w", err)
	}
	return ExportFile{Name: ExportFileName(now), ContentType: ExportContentType, Data: buf.Bytes()}, nil
}

// Save writes the export into dir and returns its path.
func (f ExportFile) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("logview: export dir: %w", err)
	}
	path := filepath.Join(dir, f.Name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", fmt.Errorf("logview: write export: %w", err)
	}
	return path, nil
}
