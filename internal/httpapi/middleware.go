package httpapi

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/railsentry/mailgate/pkg/clientip"
	"github.com/railsentry/mailgate/pkg/logger"
	"github.com/railsentry/mailgate/pkg/ratelimiter"
)

// maxAuthBodyBytes bounds how much of a request body the auth middleware
// will buffer while looking for the api_key field.
const maxAuthBodyBytes = 1 << 20

type requestIDKey struct{}

// requestIDFrom returns the request correlation ID, if any.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID assigns a correlation ID to each request, honoring an inbound
// X-Request-ID so upstream tracing survives the hop.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// statusWriter captures the response status for the request log line.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	if sw.status == 0 {
		sw.status = status
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

// requestLogger emits one structured line per completed request.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		h.log.Info("request completed",
			logger.Component("httpapi"),
			logger.RequestID(requestIDFrom(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("ip", clientip.GetIP(r)),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// recoverer converts panics into a generic 500 without leaking internals to
// the caller; detail goes to the server-side log only.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				h.log.Error("panic recovered",
					logger.Component("httpapi"),
					logger.RequestID(requestIDFrom(r.Context())),
					slog.Any("panic", rec),
					slog.String("stack", string(stack)),
				)
				respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// rateLimit enforces limiter per client IP within the given scope. Scopes
// keep the layered limits (daily, hourly, per-route) in separate buckets.
// Short-circuits before authentication by middleware ordering.
func (h *Handler) rateLimit(limiter ratelimiter.RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.GetIP(r)

			result, err := limiter.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				h.log.Error("rate limiter unavailable",
					logger.Component("httpapi"),
					slog.String("scope", scope),
					logger.Error(err),
				)
				respondError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter().Seconds())))
				h.log.Warn("rate limit exceeded",
					logger.Component("httpapi"),
					slog.String("scope", scope),
					slog.String("ip", ip),
				)
				respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requireAPIKey authenticates the request by the api_key field of its JSON
// body. The body is buffered and restored so the handler can decode it
// again. A syntactically broken body is a 400, not an auth failure: the
// caller should learn their JSON is bad, not that their key is.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
			_ = r.Body.Close()
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ip := clientip.GetIP(r)

		if len(bytes.TrimSpace(body)) == 0 {
			h.log.Warn("missing api key",
				logger.Component("httpapi"),
				slog.String("ip", ip),
			)
			respondError(w, http.StatusUnauthorized, "API key required")
			return
		}

		var payload struct {
			APIKey string `json:"api_key"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			respondError(w, http.StatusBadRequest, "JSON body required")
			return
		}

		if payload.APIKey == "" {
			h.log.Warn("missing api key",
				logger.Component("httpapi"),
				slog.String("ip", ip),
			)
			respondError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(payload.APIKey), []byte(h.cfg.APIKey)) != 1 {
			h.log.Warn("invalid api key",
				logger.Component("httpapi"),
				slog.String("ip", ip),
			)
			respondError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
