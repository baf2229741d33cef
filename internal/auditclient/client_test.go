package auditclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimika/auditlog/internal/audit"
	audithttp "github.com/elimika/auditlog/internal/audit/http"
	"github.com/elimika/auditlog/internal/logview"
)

func newTestServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(n))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(n int) http.Handler {
	base := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	entries := make([]audit.LogEntry, n)
	for i := range entries {
		status := audit.StatusSuccess
		if i%2 == 1 {
			status = audit.StatusDenied
		}
		entries[i] = audit.LogEntry{
			ID:        fmt.Sprintf("log-%02d", i),
			Event:     "course.published",
			Status:    status,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	svc := audit.NewService(audit.NewMemoryRepository(entries...), audit.ServiceConfig{})
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	audithttp.NewHandler(nil, svc).MountRoutes(r)
	return r
}

func TestFetchPagePaginates(t *testing.T) {
	srv := newTestServer(t, 7)
	client := NewClient(srv.URL+"/", 3)
	ctx := context.Background()

	first, err := client.FetchPage(ctx, logview.Query{}, 1)
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	assert.True(t, first.HasNext)
	assert.Equal(t, "log-00", first.Items[0].ID)

	last, err := client.FetchPage(ctx, logview.Query{}, 3)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.False(t, last.HasNext)
	assert.Equal(t, "log-06", last.Items[0].ID)
}

func TestFetchPageAppliesFilters(t *testing.T) {
	srv := newTestServer(t, 6)
	client := NewClient(srv.URL, 10)
	page, err := client.FetchPage(context.Background(), logview.Query{Status: "DENIED"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	for _, item := range page.Items {
		assert.Equal(t, audit.StatusDenied, item.Status)
	}
}

func TestFetchPageSurfacesProblem(t *testing.T) {
	srv := newTestServer(t, 1)
	client := NewClient(srv.URL, 10)
	_, err := client.FetchPage(context.Background(), logview.Query{Start: "not-a-date"}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestFetchPageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	_, err := NewClient(srv.URL, 0).FetchPage(context.Background(), logview.Query{}, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadRequest)
	assert.Contains(t, err.Error(), "502")
}

func TestEventsAndPing(t *testing.T) {
	srv := newTestServer(t, 2)
	client := NewClient(srv.URL, 0)
	events, err := client.Events(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"course.published"}, events)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestWithHTTPClientTrustsServerCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(newTestRouter(2))
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL, 0).FetchPage(context.Background(), logview.Query{}, 1)
	require.Error(t, err)

	client := NewClient(srv.URL, 0).WithHTTPClient(srv.Client())
	page, err := client.FetchPage(context.Background(), logview.Query{}, 1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}
