package logview

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/elimika/auditlog/internal/audit"
)

// ErrStaleResult reports a page that arrived after its query was replaced or
// invalidated. The page is dropped.
var ErrStaleResult = errors.New("logview: result superseded by newer query")

// PageResult is one page returned by the data source.
type PageResult struct {
	Items   []audit.LogEntry
	HasNext bool
}

// Fetcher loads page n (1-based) of q.
type Fetcher interface {
	FetchPage(ctx context.Context, q Query, page int) (PageResult, error)
}

// Snapshot is a read-only view of the current query's loaded pages.
type Snapshot struct {
	Key                string
	Entries            []audit.LogEntry
	Pages              int
	HasNextPage        bool
	IsFetchingNextPage bool
	IsLoading          bool
	Err                error
}

type pageSet struct {
	query    Query
	pages    []PageResult
	flat     []audit.LogEntry
	hasNext  bool
	fetching bool
	err      error
}

// flatten concatenates pages in order, keeping the first occurrence of an id.
func (p *pageSet) flatten() {
	total := 0
	for _, page := range p.pages {
		total += len(page.Items)
	}
	seen := make(map[string]struct{}, total)
	flat := make([]audit.LogEntry, 0, total)
	for _, page := range p.pages {
		for _, entry := range page.Items {
			if entry.ID != "" {
				if _, dup := seen[entry.ID]; dup {
					continue
				}
				seen[entry.ID] = struct{}{}
			}
			flat = append(flat, entry)
		}
	}
	p.flat = flat
}

// PagedSource caches page sets by filter key and loads them one page at a
// time. Only the current key may receive pages; responses for any other key
// are discarded.
type PagedSource struct {
	mu      sync.Mutex
	fetcher Fetcher
	logger  *slog.Logger
	sets    map[string]*pageSet
	current string
}

// NewPagedSource returns a source positioned on q.
func NewPagedSource(fetcher Fetcher, q Query, logger *slog.Logger) *PagedSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PagedSource{fetcher: fetcher, logger: logger, sets: make(map[string]*pageSet)}
	s.current = q.Key()
	s.sets[s.current] = &pageSet{query: q}
	return s
}

// SetQuery switches to q. Pages cached for the previous key are evicted so a
// later return to it starts again from page 1.
func (s *PagedSource) SetQuery(q Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := q.Key()
	if key == s.current {
		return
	}
	delete(s.sets, s.current)
	s.current = key
	s.sets[key] = &pageSet{query: q}
}

// Invalidate drops the cached pages for key. The current key restarts empty.
func (s *PagedSource) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		return
	}
	delete(s.sets, key)
	if key == s.current {
		s.sets[key] = &pageSet{query: set.query}
	}
}

// CurrentKey returns the filter key pages are loaded for.
func (s *PagedSource) CurrentKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// HasNextPage reports whether the data source has more pages.
func (s *PagedSource) HasNextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[s.current]
	return len(set.pages) > 0 && set.hasNext
}

// IsFetchingNextPage reports whether a page load is in flight.
func (s *PagedSource) IsFetchingNextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[s.current].fetching
}

// PrepareNextPage reserves the next page of the current query and returns
// the load to run. It returns false when a load is already in flight or the
// last page has arrived, so callers can run the load asynchronously without
// issuing duplicates.
func (s *PagedSource) PrepareNextPage() (func(ctx context.Context) error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[s.current]
	if set.fetching {
		return nil, false
	}
	if len(set.pages) > 0 && !set.hasNext {
		return nil, false
	}
	set.fetching = true
	key := s.current
	page := len(set.pages) + 1
	query := set.query
	return func(ctx context.Context) error {
		result, err := s.fetcher.FetchPage(ctx, query, page)
		return s.complete(key, set, page, result, err)
	}, true
}

// FetchNextPage loads the next page synchronously. It is a no-op when a load
// is in flight or no pages remain.
func (s *PagedSource) FetchNextPage(ctx context.Context) error {
	run, ok := s.PrepareNextPage()
	if !ok {
		return nil
	}
	return run(ctx)
}

// Refetch reloads every loaded page of the current query from page 1. The
// loaded pages stay visible until the reload completes, and stay untouched
// when it fails.
func (s *PagedSource) Refetch(ctx context.Context) error {
	s.mu.Lock()
	set := s.sets[s.current]
	if set.fetching {
		s.mu.Unlock()
		return nil
	}
	set.fetching = true
	key := s.current
	want := len(set.pages)
	if want == 0 {
		want = 1
	}
	query := set.query
	s.mu.Unlock()

	reloaded := make([]PageResult, 0, want)
	var fetchErr error
	for page := 1; page <= want; page++ {
		result, err := s.fetcher.FetchPage(ctx, query, page)
		if err != nil {
			fetchErr = err
			break
		}
		reloaded = append(reloaded, result)
		if !result.HasNext {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set.fetching = false
	if s.current != key || s.sets[key] != set {
		return ErrStaleResult
	}
	if fetchErr != nil {
		set.err = fetchErr
		s.logger.Warn("refetch audit pages", slog.Any("error", fetchErr))
		return fetchErr
	}
	set.err = nil
	set.pages = reloaded
	set.hasNext = reloaded[len(reloaded)-1].HasNext
	set.flatten()
	return nil
}

func (s *PagedSource) complete(key string, set *pageSet, page int, result PageResult, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set.fetching = false
	if s.current != key || s.sets[key] != set {
		return ErrStaleResult
	}
	if err != nil {
		set.err = err
		s.logger.Warn("fetch audit page", slog.Int("page", page), slog.Any("error", err))
		return err
	}
	if page != len(set.pages)+1 {
		return ErrStaleResult
	}
	set.err = nil
	set.pages = append(set.pages, result)
	set.hasNext = result.HasNext
	set.flatten()
	return nil
}

// Snapshot returns the flattened entries and paging flags of the current
// query. Entries must be treated as read-only.
func (s *PagedSource) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[s.current]
	return Snapshot{
		Key:                s.current,
		Entries:            set.flat,
		Pages:              len(set.pages),
		HasNextPage:        len(set.pages) > 0 && set.hasNext,
		IsFetchingNextPage: set.fetching,
		IsLoading:          set.fetching && len(set.pages) == 0,
		Err:                set.err,
	}
}
