package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// MemoryRepository keeps entries in process. It backs development mode and
// tests; production uses the PostgreSQL repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewMemoryRepository returns a repository seeded with entries.
func NewMemoryRepository(seed ...LogEntry) *MemoryRepository {
	repo := &MemoryRepository{}
	repo.entries = append(repo.entries, seed...)
	repo.sortLocked()
	return repo
}

// ListEntries returns matching entries newest first within [offset, offset+limit).
func (r *MemoryRepository) ListEntries(ctx context.Context, filters Filters, offset, limit int) ([]LogEntry, error) {
	matched := r.match(filters)
	if offset >= len(matched) {
		return []LogEntry{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]LogEntry(nil), matched[offset:end]...), nil
}

// ListAll returns every matching entry newest first.
func (r *MemoryRepository) ListAll(ctx context.Context, filters Filters) ([]LogEntry, error) {
	return r.match(filters), nil
}

// Insert adds an entry.
func (r *MemoryRepository) Insert(ctx context.Context, entry LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	r.sortLocked()
	return nil
}

// DistinctEvents returns sorted event names.
func (r *MemoryRepository) DistinctEvents(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	events := make([]string, 0)
	for _, e := range r.entries {
		if _, ok := seen[e.Event]; ok {
			continue
		}
		seen[e.Event] = struct{}{}
		events = append(events, e.Event)
	}
	sort.Strings(events)
	return events, nil
}

// DeleteBefore removes entries created strictly before cutoff.
func (r *MemoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	var deleted int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func (r *MemoryRepository) sortLocked() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].CreatedAt.After(r.entries[j].CreatedAt)
	})
}

func (r *MemoryRepository) match(filters Filters) []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := foldString(filters.Search)
	actor := foldString(filters.Actor)
	event := foldString(filters.Event)
	out := make([]LogEntry, 0)
	for _, e := range r.entries {
		if event != "" && foldString(e.Event) != event {
			continue
		}
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if !filters.Start.IsZero() && e.CreatedAt.Before(filters.Start) {
			continue
		}
		if !filters.End.IsZero() && e.CreatedAt.After(filters.End) {
			continue
		}
		if actor != "" && !containsAny(actor, actorFields(e.Actor)...) {
			continue
		}
		if search != "" && !containsAny(search, searchFields(e)...) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// foldString builds a fresh Caser per call; Casers are not safe for
// concurrent use.
func foldString(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

func containsAny(needle string, haystack ...string) bool {
	for _, h := range haystack {
		if h != "" && strings.Contains(foldString(h), needle) {
			return true
		}
	}
	return false
}

func actorFields(a *Actor) []string {
	if a == nil {
		return nil
	}
	return []string{a.Email, a.Name, a.ID}
}

func searchFields(e LogEntry) []string {
	fields := []string{e.Event, e.IPAddress}
	fields = append(fields, actorFields(e.Actor)...)
	if e.Resource != nil {
		fields = append(fields, e.Resource.Name, e.Resource.ID, e.Resource.Type)
	}
	return fields
}
