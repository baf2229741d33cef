package logview

import (
	"context"
	"sync"
)

// Controller owns the filter state of one browser instance and keeps the
// paged source pointed at the matching query.
type Controller struct {
	mu       sync.Mutex
	defaults FilterState
	filters  FilterState
	source   *PagedSource
}

// NewController builds a controller whose source starts on defaults.
func NewController(fetcher Fetcher, defaults FilterState, opts ...ControllerOption) *Controller {
	cfg := controllerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		defaults: defaults,
		filters:  defaults,
		source:   NewPagedSource(fetcher, BuildQuery(defaults), cfg.logger),
	}
}

// Filters returns the current filter state.
func (c *Controller) Filters() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Defaults returns the filter state ResetFilters restores.
func (c *Controller) Defaults() FilterState {
	return c.defaults
}

// Source exposes the paged source for rendering and scroll triggering.
func (c *Controller) Source() *PagedSource {
	return c.source
}

// UpdateFilter sets one field. A change of filter key discards the pages of
// the old key and restarts pagination at page 1.
func (c *Controller) UpdateFilter(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.filters.With(field, value)
	if err != nil {
		return err
	}
	c.filters = next
	c.source.SetQuery(BuildQuery(next))
	return nil
}

// ResetFilters restores the defaults and evicts cached pages for both the
// old and the default key, so the next load starts from page 1.
func (c *Controller) ResetFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	oldKey := FilterKey(c.filters)
	c.filters = c.defaults
	c.source.Invalidate(oldKey)
	c.source.SetQuery(BuildQuery(c.defaults))
	c.source.Invalidate(FilterKey(c.defaults))
}

// FetchNextPage loads the next page of the current query.
func (c *Controller) FetchNextPage(ctx context.Context) error {
	return c.source.FetchNextPage(ctx)
}

// Refetch reloads the loaded pages of the current query.
func (c *Controller) Refetch(ctx context.Context) error {
	return c.source.Refetch(ctx)
}

// Snapshot returns the flattened entries of the current query.
func (c *Controller) Snapshot() Snapshot {
	return c.source.Snapshot()
}
