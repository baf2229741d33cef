package audithttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/elimika/auditlog/internal/audit"
	"github.com/elimika/auditlog/internal/platform/httpx"
)

const dateOnly = "2006-01-02"

// AuditService defines the business contract behind the audit endpoints.
type AuditService interface {
	List(ctx context.Context, filters audit.Filters) (audit.Page, error)
	Export(ctx context.Context, filters audit.Filters) ([]audit.LogEntry, error)
	Record(ctx context.Context, entry audit.LogEntry) (audit.LogEntry, error)
	Events(ctx context.Context) ([]string, error)
}

// Handler menangani permintaan audit log.
type Handler struct {
	logger   *slog.Logger
	service  AuditService
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service AuditService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

type listQuery struct {
	Search   string `validate:"max=200"`
	Event    string `validate:"max=120"`
	Actor    string `validate:"max=200"`
	Status   string `validate:"omitempty,oneof=SUCCESS FAILED DENIED"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=200"`
}

type recordRequest struct {
	ID        string          `json:"id" validate:"omitempty,uuid"`
	Event     string          `json:"event" validate:"required,max=120"`
	Actor     *audit.Actor    `json:"actor"`
	Resource  *audit.Resource `json:"resource"`
	Status    string          `json:"status" validate:"omitempty,oneof=SUCCESS FAILED DENIED"`
	CreatedAt time.Time       `json:"created_at"`
	IPAddress string          `json:"ip_address" validate:"omitempty,ip"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.handleServiceError(w, "list audit entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServiceError(w, "export audit entries", err)
		return
	}
	filename := fmt.Sprintf("audit-log-export-%d.csv", h.now().UnixMilli())
	w.Header().Set("Content-Type", "text/csv;charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := audit.WriteCSV(w, rows); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", describeValidation(err))
		return
	}
	entry, err := h.service.Record(r.Context(), audit.LogEntry{
		ID:        req.ID,
		Event:     req.Event,
		Actor:     req.Actor,
		Resource:  req.Resource,
		Status:    audit.Status(req.Status),
		CreatedAt: req.CreatedAt,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		h.handleServiceError(w, "record audit entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	events, err := h.service.Events(r.Context())
	if err != nil {
		h.handleServiceError(w, "list audit events", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) parseFilters(r *http.Request) (audit.Filters, error) {
	values := r.URL.Query()
	q := listQuery{
		Search: strings.TrimSpace(values.Get("search")),
		Event:  strings.TrimSpace(values.Get("event")),
		Actor:  strings.TrimSpace(values.Get("actor")),
		Status: strings.ToUpper(strings.TrimSpace(values.Get("status"))),
	}
	var err error
	if q.Page, err = parseOptionalInt(values.Get("page")); err != nil {
		return audit.Filters{}, validationError{field: "page"}
	}
	if q.PageSize, err = parseOptionalInt(values.Get("page_size")); err != nil {
		return audit.Filters{}, validationError{field: "page_size"}
	}
	if err := h.validate.Struct(q); err != nil {
		return audit.Filters{}, validationError{field: describeValidation(err)}
	}
	start, err := parseBoundary(values.Get("start"), false)
	if err != nil {
		return audit.Filters{}, validationError{field: "start"}
	}
	end, err := parseBoundary(values.Get("end"), true)
	if err != nil {
		return audit.Filters{}, validationError{field: "end"}
	}
	filters := audit.Filters{
		Search:   q.Search,
		Event:    q.Event,
		Actor:    q.Actor,
		Status:   audit.Status(q.Status),
		Start:    start,
		End:      end,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if err := filters.Validate(); err != nil {
		return audit.Filters{}, validationError{field: "range"}
	}
	return filters, nil
}

// parseBoundary accepts RFC 3339 instants or plain dates. A plain end date
// covers the whole day.
func parseBoundary(value string, endOfDay bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return strings.Join(fields, ",")
	}
	return err.Error()
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid filter: "+v.field)
		return
	}
	h.handleServiceError(w, "validate filters", err)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidRange), errors.Is(err, audit.ErrInvalidStatus), errors.Is(err, audit.ErrEventRequired):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(message, slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
