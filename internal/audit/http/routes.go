package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const exportRateLimit = 10
const rateWindow = time.Minute

// MountRoutes mendaftarkan endpoint audit log dan ekspor CSV.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportRateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Get("/audit/logs", h.handleList)
	r.Post("/audit/logs", h.handleRecord)
	r.Get("/audit/events", h.handleEvents)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/audit/logs/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
