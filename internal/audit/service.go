package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Repository menyediakan akses penyimpanan entri audit.
type Repository interface {
	ListEntries(ctx context.Context, filters Filters, offset, limit int) ([]LogEntry, error)
	ListAll(ctx context.Context, filters Filters) ([]LogEntry, error)
	Insert(ctx context.Context, entry LogEntry) error
	DistinctEvents(ctx context.Context) ([]string, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PageCache stores rendered pages keyed by generation and serialized filter.
// Invalidate bumps the generation.
type PageCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string, page int) (Page, bool, error)
	Set(ctx context.Context, gen int64, key string, page int, value Page) error
	Invalidate(ctx context.Context) error
}

// Invalidator schedules cache invalidation outside the request path.
type Invalidator interface {
	EnqueueInvalidate(ctx context.Context, reason string) error
}

// ServiceConfig tunes paging limits and optional collaborators.
type ServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	Cache           PageCache
	Invalidator     Invalidator
	Logger          *slog.Logger
}

// Service mengoordinasikan pengambilan dan pencatatan data audit.
type Service struct {
	repo        Repository
	cache       PageCache
	invalidator Invalidator
	logger      *slog.Logger
	pageSize    int
	maxPageSize int
	group       singleflight.Group
	now         func() time.Time
}

// NewService membuat service audit baru.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxSize := cfg.MaxPageSize
	if maxSize <= 0 {
		maxSize = maxPageSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return &Service{
		repo:        repo,
		cache:       cfg.Cache,
		invalidator: cfg.Invalidator,
		logger:      logger,
		pageSize:    pageSize,
		maxPageSize: maxSize,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// List returns one page of entries matching filters, newest first.
func (s *Service) List(ctx context.Context, filters Filters) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	filters = filters.Normalize(s.pageSize, s.maxPageSize)
	if err := filters.Validate(); err != nil {
		return Page{}, err
	}
	key := filters.CacheKey()
	gen, cacheable := s.generation(ctx)
	if cacheable {
		cached, ok, err := s.cache.Get(ctx, gen, key, filters.Page)
		if err != nil {
			s.logger.Warn("audit page cache get", slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	// The load outlives a cancelled caller so requests that joined the flight
	// still get their page.
	loadCtx := context.WithoutCancel(ctx)
	flightKey := strconv.FormatInt(gen, 10) + "#" + key + "#" + strconv.Itoa(filters.Page)
	resultChan := s.group.DoChan(flightKey, func() (interface{}, error) {
		return s.loadPage(loadCtx, gen, cacheable, key, filters)
	})
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return res.Val.(Page), nil
	}
}

// generation reads the cache generation before any rows are loaded. A false
// result means the page must not be cached.
func (s *Service) generation(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("audit page cache generation", slog.Any("error", err))
		return 0, false
	}
	return gen, true
}

func (s *Service) loadPage(ctx context.Context, gen int64, cacheable bool, key string, filters Filters) (Page, error) {
	rows, err := s.repo.ListEntries(ctx, filters, filters.Offset(), filters.PageSize+1)
	if err != nil {
		return Page{}, fmt.Errorf("audit: list entries: %w", err)
	}
	hasNext := len(rows) > filters.PageSize
	if hasNext {
		rows = rows[:filters.PageSize]
	}
	if rows == nil {
		rows = []LogEntry{}
	}
	page := Page{Items: rows, Page: filters.Page, PageSize: filters.PageSize, HasNext: hasNext}
	if cacheable {
		if err := s.cache.Set(ctx, gen, key, filters.Page, page); err != nil {
			s.logger.Warn("audit page cache set", slog.Any("error", err))
		}
	}
	return page, nil
}

// Export mengambil seluruh data audit tanpa paging.
func (s *Service) Export(ctx context.Context, filters Filters) ([]LogEntry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	filters = filters.Normalize(s.pageSize, s.maxPageSize)
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("audit: list all: %w", err)
	}
	return rows, nil
}

// Record stores a new entry, assigning an id and timestamp when absent.
func (s *Service) Record(ctx context.Context, entry LogEntry) (LogEntry, error) {
	if s.repo == nil {
		return LogEntry{}, fmt.Errorf("audit: repository not configured")
	}
	entry.Event = strings.TrimSpace(entry.Event)
	if entry.Event == "" {
		return LogEntry{}, ErrEventRequired
	}
	if entry.Status != "" && !entry.Status.Valid() {
		return LogEntry{}, ErrInvalidStatus
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return LogEntry{}, fmt.Errorf("audit: insert: %w", err)
	}
	s.invalidate(ctx, "record")
	return entry, nil
}

// Events returns the distinct event names known to the store.
func (s *Service) Events(ctx context.Context) ([]string, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.DistinctEvents(ctx)
}

// Purge deletes entries older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	if retention <= 0 {
		return 0, nil
	}
	deleted, err := s.repo.DeleteBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("audit: purge: %w", err)
	}
	if deleted > 0 {
		if err := s.InvalidateCache(ctx); err != nil {
			s.logger.Warn("audit cache invalidate after purge", slog.Any("error", err))
		}
	}
	return deleted, nil
}

// InvalidateCache drops every cached page.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context, reason string) {
	if s.invalidator != nil {
		err := s.invalidator.EnqueueInvalidate(ctx, reason)
		if err == nil {
			return
		}
		s.logger.Warn("enqueue audit cache invalidation", slog.String("reason", reason), slog.Any("error", err))
	}
	if err := s.InvalidateCache(ctx); err != nil {
		s.logger.Warn("audit cache invalidate", slog.String("reason", reason), slog.Any("error", err))
	}
}
