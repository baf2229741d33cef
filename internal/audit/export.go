package audit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// CSVHeader is the fixed column order of audit exports.
var CSVHeader = []string{"Timestamp", "Event", "Actor", "Resource", "Status", "IP Address"}

// csvStreamer quotes every cell, unlike encoding/csv which only quotes when
// a cell needs it.
type csvStreamer struct {
	buf          *bufio.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	return &csvStreamer{buf: bufio.NewWriterSize(w, csvBufferSize), flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	for i, cell := range row {
		if i > 0 {
			if err := s.buf.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := s.buf.WriteString(QuoteCSV(cell)); err != nil {
			return err
		}
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// QuoteCSV wraps a cell in double quotes, doubling embedded quotes.
func QuoteCSV(cell string) string {
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// CSVRecord renders the export columns for one entry.
func CSVRecord(entry LogEntry) []string {
	return []string{
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.Event,
		orPlaceholder(entry.Actor.Display()),
		orPlaceholder(entry.Resource.Display()),
		orPlaceholder(string(entry.Status)),
		orPlaceholder(entry.IPAddress),
	}
}

// WriteCSV streams a header and one row per entry to w.
func WriteCSV(w io.Writer, entries []LogEntry) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeRow(CSVHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := streamer.writeRow(CSVRecord(entry)); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return Placeholder
	}
	return value
}
