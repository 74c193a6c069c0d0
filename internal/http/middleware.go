package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/logging"
)

// DefaultPrincipalHeader carries the user id asserted by the authenticating proxy.
const DefaultPrincipalHeader = "X-Remote-User"

// AuthConfig configures Authenticate.
type AuthConfig struct {
	// Header names the request header holding the user id. Empty means DefaultPrincipalHeader.
	Header string
	// Admins lists user ids with administrator rights.
	Admins []string
}

// Authenticate attaches the principal named by the configured header to the request
// context. Requests without the header continue anonymously.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	header := cfg.Header
	if strings.TrimSpace(header) == "" {
		header = DefaultPrincipalHeader
	}
	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(header))
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, isAdmin := admins[userID]
			ctx := ContextWithPrincipal(r.Context(), application.Principal{UserID: userID, IsAdmin: isAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal rejects anonymous requests with 401.
func RequirePrincipal(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_REQUIRED",
					Message:   errMissingPrincipal.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger installs a request scoped logger with a sequential request id and logs
// each request's outcome.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
