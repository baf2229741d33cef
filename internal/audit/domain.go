package audit

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Placeholder is rendered for optional columns that carry no value.
const Placeholder = "—"

// Status is the outcome recorded for an audited action.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusDenied  Status = "DENIED"
)

var (
	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("audit: invalid status")
	// ErrInvalidRange is returned when the start boundary is after the end boundary.
	ErrInvalidRange = errors.New("audit: start is after end")
	// ErrEventRequired is returned when recording an entry without an event name.
	ErrEventRequired = errors.New("audit: event is required")
)

// Statuses lists every known status in display order.
func Statuses() []Status {
	return []Status{StatusSuccess, StatusFailed, StatusDenied}
}

// ParseStatus converts user input into a Status. Blank input means "any".
func ParseStatus(value string) (Status, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	status := Status(trimmed)
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusDenied:
		return true
	}
	return false
}

// Actor identifies who performed an audited action.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Display falls back through email, name and id.
func (a *Actor) Display() string {
	if a == nil {
		return ""
	}
	return firstNonBlank(a.Email, a.Name, a.ID)
}

// Resource identifies the object an audited action touched.
type Resource struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Display falls back through name, id and type.
func (r *Resource) Display() string {
	if r == nil {
		return ""
	}
	return firstNonBlank(r.Name, r.ID, r.Type)
}

// LogEntry is a single audit record.
type LogEntry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Actor     *Actor    `json:"actor,omitempty"`
	Resource  *Resource `json:"resource,omitempty"`
	Status    Status    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// Filters narrows a listing of audit entries. Zero values mean "unset".
type Filters struct {
	Search   string
	Event    string
	Actor    string
	Status   Status
	Start    time.Time
	End      time.Time
	Page     int
	PageSize int
}

// Normalize trims text filters and clamps paging to the given limits.
func (f Filters) Normalize(defaultSize, maxSize int) Filters {
	f.Search = strings.TrimSpace(f.Search)
	f.Event = strings.TrimSpace(f.Event)
	f.Actor = strings.TrimSpace(f.Actor)
	if f.PageSize <= 0 {
		f.PageSize = defaultSize
	}
	if maxSize > 0 && f.PageSize > maxSize {
		f.PageSize = maxSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return f
}

// Validate checks the constraints enforced by the data source.
func (f Filters) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return ErrInvalidStatus
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.Start.After(f.End) {
		return ErrInvalidRange
	}
	return nil
}

// Offset returns the number of rows preceding the requested page.
func (f Filters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// CacheKey serializes every field except the page number. Pages of the same
// query share a key.
func (f Filters) CacheKey() string {
	values := url.Values{}
	setIf(values, "search", f.Search)
	setIf(values, "event", f.Event)
	setIf(values, "actor", f.Actor)
	setIf(values, "status", string(f.Status))
	if !f.Start.IsZero() {
		values.Set("start", f.Start.UTC().Format(time.RFC3339Nano))
	}
	if !f.End.IsZero() {
		values.Set("end", f.End.UTC().Format(time.RFC3339Nano))
	}
	if f.PageSize > 0 {
		values.Set("size", strconv.Itoa(f.PageSize))
	}
	return values.Encode()
}

// Page is one slice of a filtered listing.
type Page struct {
	Items    []LogEntry `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	HasNext  bool       `json:"has_next"`
}

func setIf(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
