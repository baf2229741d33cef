package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimika/auditlog/internal/audit"
	"github.com/elimika/auditlog/internal/logview"
)

type memFetcher struct {
	mu       sync.Mutex
	entries  []audit.LogEntry
	pageSize int
	err      error
	requests []logview.Query
	pages    []int
}

func newMemFetcher(n, pageSize int) *memFetcher {
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	entries := make([]audit.LogEntry, n)
	for i := range entries {
		status := audit.StatusSuccess
		if i%4 == 0 {
			status = audit.StatusDenied
		}
		entries[i] = audit.LogEntry{
			ID:        fmt.Sprintf("id-%02d", i),
			Event:     fmt.Sprintf("event-%02d", i),
			Actor:     &audit.Actor{Email: fmt.Sprintf("user%02d@elimika.test", i)},
			Status:    status,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return &memFetcher{entries: entries, pageSize: pageSize}
}

func (f *memFetcher) FetchPage(_ context.Context, q logview.Query, page int) (logview.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, q)
	f.pages = append(f.pages, page)
	if f.err != nil {
		return logview.PageResult{}, f.err
	}
	matched := make([]audit.LogEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if q.Status != "" && string(e.Status) != q.Status {
			continue
		}
		if q.Search != "" && !strings.Contains(e.Event, q.Search) {
			continue
		}
		matched = append(matched, e)
	}
	start := min((page-1)*f.pageSize, len(matched))
	end := min(start+f.pageSize, len(matched))
	return logview.PageResult{Items: matched[start:end], HasNext: end < len(matched)}, nil
}

func (f *memFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// drive runs cmd and every command it produces, feeding the messages back
// into the model.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 1000, "command loop did not settle")
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		updated, more := m.Update(msg)
		m = updated.(Model)
		queue = append(queue, more)
	}
	return m
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, fetcher *memFetcher, defaults logview.FilterState) Model {
	t.Helper()
	ctrl := logview.NewController(fetcher, defaults)
	m := New(context.Background(), ctrl, Options{
		ExportDir: t.TempDir(),
		Now:       func() time.Time { return time.UnixMilli(1710061200000) },
	})
	m, _ = send(m, tea.WindowSizeMsg{Width: 160, Height: 20})
	return drive(t, m, m.loadFirstPage())
}

func TestInitialLoadFillsViewport(t *testing.T) {
	fetcher := newMemFetcher(100, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})

	require.Equal(t, 14, m.viewportRows())
	snap := m.ctrl.Snapshot()
	assert.Len(t, snap.Entries, 40)
	assert.Equal(t, []int{1, 2, 3, 4}, fetcher.pages)
	assert.True(t, snap.HasNextPage)
}

func TestScrollToBottomRequestsNextPageOnce(t *testing.T) {
	fetcher := newMemFetcher(100, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})

	m, first := send(m, keyPress("G"))
	require.NotNil(t, first)
	assert.Equal(t, 39, m.cursor)
	assert.True(t, m.ctrl.Source().IsFetchingNextPage())

	m, second := send(m, keyPress("j"))
	assert.Nil(t, second, "no second request while a page is in flight")

	m = drive(t, m, first)
	seen := map[int]bool{}
	for _, page := range fetcher.pages {
		assert.False(t, seen[page], "page %d fetched twice", page)
		seen[page] = true
	}
	assert.Greater(t, len(m.ctrl.Snapshot().Entries), 40)
}

func TestStatusCycleRestartsFromFirstPage(t *testing.T) {
	fetcher := newMemFetcher(100, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})

	m, cmd := send(m, keyPress("s"))
	assert.Equal(t, "SUCCESS", m.ctrl.Filters().Status)
	assert.Equal(t, 0, m.cursor)
	assert.Empty(t, m.ctrl.Snapshot().Entries, "stale rows are cleared immediately")
	assert.Contains(t, m.View(), "Loading audit log")

	requestsBefore := len(fetcher.pages)
	m = drive(t, m, cmd)
	assert.Equal(t, 1, fetcher.pages[requestsBefore])
	assert.Equal(t, "SUCCESS", fetcher.requests[requestsBefore].Status)
	for _, e := range m.ctrl.Snapshot().Entries {
		assert.Equal(t, audit.StatusSuccess, e.Status)
	}
}

func TestSearchEditing(t *testing.T) {
	fetcher := newMemFetcher(30, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})

	m, _ = send(m, keyPress("/"))
	require.Equal(t, logview.FieldSearch, m.editing)
	m.input.SetValue("event-1")
	m, cmd := send(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drive(t, m, cmd)
	assert.Equal(t, "event-1", m.ctrl.Filters().Search)
	assert.Equal(t, logview.Field(""), m.editing)
	assert.Len(t, m.ctrl.Snapshot().Entries, 10)

	m, _ = send(m, keyPress("/"))
	m.input.SetValue("ignored")
	m, _ = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "event-1", m.ctrl.Filters().Search)
}

func TestResetFiltersTwiceMatchesOnce(t *testing.T) {
	defaults := logview.FilterState{Status: "DENIED"}
	fetcher := newMemFetcher(40, 10)
	m := newTestModel(t, fetcher, defaults)

	m, cmd := send(m, keyPress("s"))
	m = drive(t, m, cmd)
	require.Equal(t, "", m.ctrl.Filters().Status)

	m, cmd = send(m, keyPress("r"))
	m = drive(t, m, cmd)
	once := m.ctrl.Snapshot()
	m, cmd = send(m, keyPress("r"))
	m = drive(t, m, cmd)
	twice := m.ctrl.Snapshot()

	assert.Equal(t, defaults, m.ctrl.Filters())
	assert.Equal(t, once.Key, twice.Key)
	assert.Equal(t, len(once.Entries), len(twice.Entries))
	assert.Equal(t, 1, fetcher.pages[len(fetcher.pages)-1])
}

func TestExportWritesLoadedEntries(t *testing.T) {
	fetcher := newMemFetcher(25, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})

	m, cmd := send(m, keyPress("x"))
	m = drive(t, m, cmd)
	assert.Contains(t, m.toast.text, "Exported 25 entries")
	assert.Equal(t, toastSuccess, m.toast.level)

	data, err := os.ReadFile(filepath.Join(m.exportDir, "audit-log-export-1710061200000.csv"))
	require.NoError(t, err)
	assert.Equal(t, 26, strings.Count(string(data), "\n"))
}

func TestExportWithoutEntries(t *testing.T) {
	m := newTestModel(t, newMemFetcher(0, 10), logview.FilterState{})
	assert.Contains(t, m.View(), "No audit entries match")

	m, cmd := send(m, keyPress("x"))
	m = drive(t, m, cmd)
	assert.Equal(t, "Nothing to export yet", m.toast.text)
	assert.Equal(t, toastInfo, m.toast.level)
}

func TestEmptyStateOffersResetOnlyWhenFiltered(t *testing.T) {
	fetcher := newMemFetcher(0, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})
	assert.Contains(t, m.View(), "No audit entries match")
	assert.NotContains(t, m.View(), "Press r to reset filters.")

	m, cmd := send(m, keyPress("s"))
	m = drive(t, m, cmd)
	require.NotEqual(t, m.ctrl.Defaults(), m.ctrl.Filters())
	assert.Contains(t, m.View(), "Press r to reset filters.")
}

func TestViewRendersOnlyVisibleWindow(t *testing.T) {
	fetcher := newMemFetcher(100, 10)
	m := newTestModel(t, fetcher, logview.FilterState{})

	view := m.View()
	assert.Contains(t, view, "event-00")
	assert.Contains(t, view, "event-13")
	assert.NotContains(t, view, "event-14", "rows past the viewport are not drawn")
	assert.NotContains(t, view, "event-35")
	assert.Contains(t, view, "40 entries loaded, more available")
}

func TestLoadFailureShowsRetry(t *testing.T) {
	fetcher := newMemFetcher(15, 10)
	boom := errors.New("connection refused")
	fetcher.setErr(boom)
	m := newTestModel(t, fetcher, logview.FilterState{})

	assert.Contains(t, m.View(), "Could not load audit entries")
	assert.Equal(t, toastError, m.toast.level)

	fetcher.setErr(nil)
	m, cmd := send(m, keyPress("R"))
	m = drive(t, m, cmd)
	assert.Len(t, m.ctrl.Snapshot().Entries, 15)
	assert.Equal(t, "Audit log refreshed", m.toast.text)
}

func TestToastExpiresOnTick(t *testing.T) {
	m := newTestModel(t, newMemFetcher(1, 10), logview.FilterState{})
	now := time.UnixMilli(0)
	m.now = func() time.Time { return now }
	m.setToast("hello", toastInfo)

	m, _ = send(m, m.spin.Tick())
	assert.Equal(t, "hello", m.toast.text)

	now = now.Add(toastTTL)
	m, _ = send(m, m.spin.Tick())
	assert.Empty(t, m.toast.text)
}

func TestScrollbar(t *testing.T) {
	bar := scrollbar(4, 0, 4)
	assert.Equal(t, []string{" ", " ", " ", " "}, bar)

	bar = scrollbar(10, 90, 100)
	require.Len(t, bar, 10)
	assert.Contains(t, bar[9], "█")
	assert.NotContains(t, bar[0], "█")
}

func TestPadTruncates(t *testing.T) {
	assert.Equal(t, "abc  ", pad("abc", 5))
	assert.Equal(t, "abcd…", pad("abcdefgh", 5))
}
