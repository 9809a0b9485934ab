package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/railsentry/mailgate/pkg/ratelimiter"
)

// NewRouter wires routes and middleware.
//
// Two throttling layers share the store under distinct scopes: the global
// daily and hourly limits cover every route, and /send-email carries its own
// tighter hourly budget. Limiting runs before authentication; the API-key
// check runs before the handlers that need it.
func NewRouter(h *Handler, store ratelimiter.Store) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(h.recoverer)
	r.Use(h.requestLogger)

	rl := h.cfg.RateLimit
	var daily, hourly, perRoute *ratelimiter.Bucket
	if rl.Enabled {
		var err error
		if daily, err = ratelimiter.NewBucket(store, ratelimiter.PerWindow(rl.GlobalPerDay, 24*time.Hour)); err != nil {
			return nil, err
		}
		if hourly, err = ratelimiter.NewBucket(store, ratelimiter.PerWindow(rl.GlobalPerHour, time.Hour)); err != nil {
			return nil, err
		}
		if perRoute, err = ratelimiter.NewBucket(store, ratelimiter.PerWindow(rl.PerHour, time.Hour)); err != nil {
			return nil, err
		}
		r.Use(h.rateLimit(daily, "global-day"))
		r.Use(h.rateLimit(hourly, "global-hour"))
	}

	r.Get("/", h.home)
	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		if rl.Enabled {
			r.Use(h.rateLimit(perRoute, "send-email"))
		}
		r.Use(h.requireAPIKey)
		r.Post("/send-email", h.sendEmail)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Get("/stats", h.stats)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r, nil
}
