package logview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimika/auditlog/internal/audit"
)

type fakeFetcher struct {
	mu       sync.Mutex
	entries  []audit.LogEntry
	pageSize int
	calls    []fetchCall
	err      error
	gate     chan struct{}
	pages    map[int]PageResult
}

type fetchCall struct {
	query Query
	page  int
}

func newFakeFetcher(n, pageSize int) *fakeFetcher {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	entries := make([]audit.LogEntry, n)
	for i := range entries {
		status := audit.StatusSuccess
		if i%3 == 0 {
			status = audit.StatusFailed
		}
		entries[i] = audit.LogEntry{
			ID:        fmt.Sprintf("e-%03d", i),
			Event:     "invitation.sent",
			Status:    status,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return &fakeFetcher{entries: entries, pageSize: pageSize}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, q Query, page int) (PageResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{query: q, page: page})
	gate := f.gate
	err := f.err
	override, hasOverride := f.pages[page]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return PageResult{}, ctx.Err()
		}
	}
	if err != nil {
		return PageResult{}, err
	}
	if hasOverride {
		return override, nil
	}
	matched := make([]audit.LogEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if q.Status != "" && string(e.Status) != q.Status {
			continue
		}
		matched = append(matched, e)
	}
	start := (page - 1) * f.pageSize
	if start >= len(matched) {
		return PageResult{Items: []audit.LogEntry{}}, nil
	}
	end := start + f.pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return PageResult{Items: matched[start:end], HasNext: end < len(matched)}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestPagedSourceAppendsPagesInOrder(t *testing.T) {
	fetcher := newFakeFetcher(25, 10)
	src := NewPagedSource(fetcher, Query{}, nil)
	ctx := context.Background()

	snap := src.Snapshot()
	assert.Empty(t, snap.Entries)
	assert.False(t, snap.HasNextPage)

	for i := 0; i < 5; i++ {
		require.NoError(t, src.FetchNextPage(ctx))
	}
	snap = src.Snapshot()
	require.Len(t, snap.Entries, 25)
	assert.Equal(t, 3, snap.Pages)
	assert.False(t, snap.HasNextPage)
	assert.Equal(t, 3, fetcher.callCount(), "no fetch after the last page")
	for i, e := range snap.Entries {
		assert.Equal(t, fmt.Sprintf("e-%03d", i), e.ID)
	}
}

func TestPagedSourceDeduplicatesByID(t *testing.T) {
	dup := audit.LogEntry{ID: "same", Event: "a"}
	fetcher := &fakeFetcher{pageSize: 2, pages: map[int]PageResult{
		1: {Items: []audit.LogEntry{{ID: "x"}, dup}, HasNext: true},
		2: {Items: []audit.LogEntry{{ID: "same", Event: "b"}, {ID: "y"}}},
	}}
	src := NewPagedSource(fetcher, Query{}, nil)
	require.NoError(t, src.FetchNextPage(context.Background()))
	require.NoError(t, src.FetchNextPage(context.Background()))
	snap := src.Snapshot()
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, "a", snap.Entries[1].Event, "first occurrence wins")
}

func TestPagedSourceSingleInFlight(t *testing.T) {
	fetcher := newFakeFetcher(30, 10)
	fetcher.gate = make(chan struct{})
	src := NewPagedSource(fetcher, Query{}, nil)

	run, ok := src.PrepareNextPage()
	require.True(t, ok)
	_, again := src.PrepareNextPage()
	assert.False(t, again, "second reservation refused while in flight")
	assert.True(t, src.IsFetchingNextPage())
	assert.True(t, src.Snapshot().IsLoading)

	done := make(chan error, 1)
	go func() { done <- run(context.Background()) }()
	close(fetcher.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fetcher.callCount())
	assert.False(t, src.IsFetchingNextPage())
}

func TestPagedSourceDropsStaleResponse(t *testing.T) {
	fetcher := newFakeFetcher(30, 10)
	fetcher.gate = make(chan struct{})
	src := NewPagedSource(fetcher, Query{}, nil)

	run, ok := src.PrepareNextPage()
	require.True(t, ok)
	done := make(chan error, 1)
	go func() { done <- run(context.Background()) }()

	src.SetQuery(Query{Status: "FAILED"})
	close(fetcher.gate)
	assert.ErrorIs(t, <-done, ErrStaleResult)

	snap := src.Snapshot()
	assert.Empty(t, snap.Entries, "old-filter page must not leak into the new query")
	assert.False(t, snap.IsFetchingNextPage)
}

func TestPagedSourceFailureKeepsPages(t *testing.T) {
	fetcher := newFakeFetcher(30, 10)
	src := NewPagedSource(fetcher, Query{}, nil)
	ctx := context.Background()
	require.NoError(t, src.FetchNextPage(ctx))

	boom := errors.New("backend unavailable")
	fetcher.setErr(boom)
	assert.ErrorIs(t, src.FetchNextPage(ctx), boom)
	snap := src.Snapshot()
	assert.Len(t, snap.Entries, 10)
	assert.ErrorIs(t, snap.Err, boom)
	assert.False(t, snap.IsFetchingNextPage)

	assert.ErrorIs(t, src.Refetch(ctx), boom)
	assert.Len(t, src.Snapshot().Entries, 10)

	fetcher.setErr(nil)
	require.NoError(t, src.Refetch(ctx))
	snap = src.Snapshot()
	assert.Len(t, snap.Entries, 10)
	assert.NoError(t, snap.Err)
	require.NoError(t, src.FetchNextPage(ctx))
	assert.Len(t, src.Snapshot().Entries, 20)
}

func TestPagedSourceRefetchReloadsLoadedPages(t *testing.T) {
	fetcher := newFakeFetcher(30, 10)
	src := NewPagedSource(fetcher, Query{}, nil)
	ctx := context.Background()
	require.NoError(t, src.FetchNextPage(ctx))
	require.NoError(t, src.FetchNextPage(ctx))
	before := fetcher.callCount()
	require.NoError(t, src.Refetch(ctx))
	assert.Equal(t, before+2, fetcher.callCount())
	assert.Len(t, src.Snapshot().Entries, 20)
}

func TestPagedSourceInvalidateCurrentKey(t *testing.T) {
	fetcher := newFakeFetcher(30, 10)
	src := NewPagedSource(fetcher, Query{}, nil)
	require.NoError(t, src.FetchNextPage(context.Background()))
	src.Invalidate(src.CurrentKey())
	snap := src.Snapshot()
	assert.Empty(t, snap.Entries)
	assert.Equal(t, 0, snap.Pages)
	require.NoError(t, src.FetchNextPage(context.Background()))
	assert.Equal(t, 1, fetcher.calls[len(fetcher.calls)-1].page)
}
