// Package logview holds the client-side state of the audit log browser:
// filter state, the paged result cache, list virtualization and the
// infinite-scroll trigger. Nothing here depends on a particular UI.
package logview

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Field names one editable filter.
type Field string

const (
	FieldSearch    Field = "search"
	FieldEvent     Field = "event"
	FieldActor     Field = "actor"
	FieldStatus    Field = "status"
	FieldStartDate Field = "startDate"
	FieldEndDate   Field = "endDate"
)

// Fields lists every filter in display order.
func Fields() []Field {
	return []Field{FieldSearch, FieldEvent, FieldActor, FieldStatus, FieldStartDate, FieldEndDate}
}

// FilterState is the user-editable filter set. Empty strings mean unset.
// Dates are ISO instants passed through verbatim; the data source rejects
// malformed values.
type FilterState struct {
	Search    string
	Event     string
	Actor     string
	Status    string
	StartDate string
	EndDate   string
}

// Get returns the value held for field.
func (f FilterState) Get(field Field) string {
	switch field {
	case FieldSearch:
		return f.Search
	case FieldEvent:
		return f.Event
	case FieldActor:
		return f.Actor
	case FieldStatus:
		return f.Status
	case FieldStartDate:
		return f.StartDate
	case FieldEndDate:
		return f.EndDate
	}
	return ""
}

// With returns a copy with field set. Blank values clear the field.
func (f FilterState) With(field Field, value string) (FilterState, error) {
	value = strings.TrimSpace(value)
	switch field {
	case FieldSearch:
		f.Search = value
	case FieldEvent:
		f.Event = value
	case FieldActor:
		f.Actor = value
	case FieldStatus:
		f.Status = strings.ToUpper(value)
	case FieldStartDate:
		f.StartDate = value
	case FieldEndDate:
		f.EndDate = value
	default:
		return f, fmt.Errorf("logview: unknown filter %q", field)
	}
	return f, nil
}

// Query is the request handed to the paged data source.
type Query struct {
	Search string
	Event  string
	Actor  string
	Status string
	Start  string
	End    string
}

// BuildQuery converts filter state into a query. It performs no cross-field
// validation.
func BuildQuery(state FilterState) Query {
	return Query{
		Search: strings.TrimSpace(state.Search),
		Event:  strings.TrimSpace(state.Event),
		Actor:  strings.TrimSpace(state.Actor),
		Status: strings.ToUpper(strings.TrimSpace(state.Status)),
		Start:  strings.TrimSpace(state.StartDate),
		End:    strings.TrimSpace(state.EndDate),
	}
}

// Values encodes the query for the HTTP API. Page and size are added when
// positive.
func (q Query) Values(page, pageSize int) url.Values {
	values := url.Values{}
	for _, kv := range [][2]string{
		{"search", q.Search},
		{"event", q.Event},
		{"actor", q.Actor},
		{"status", q.Status},
		{"start", q.Start},
		{"end", q.End},
	} {
		if kv[1] != "" {
			values.Set(kv[0], kv[1])
		}
	}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		values.Set("page_size", strconv.Itoa(pageSize))
	}
	return values
}

// Key is the filter key identifying the cached page set for q.
func (q Query) Key() string {
	return q.Values(0, 0).Encode()
}

// FilterKey serializes state into its cache key.
func FilterKey(state FilterState) string {
	return BuildQuery(state).Key()
}
