package handler

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// Logger writes one structured access log line per request and attaches a
// request-scoped logger to the context.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With().Str("request_id", chimiddleware.GetReqID(r.Context())).Logger()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			evt := reqLog.Info()
			if status >= http.StatusInternalServerError {
				evt = reqLog.Warn()
			}
			evt.Str("request", describe(r.Method, r.URL.Path)).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// CORS allows browser clients from origin ("*" for any).
func CORS(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate requires a valid bearer token and stores the caller identity
// in the request context.
func Authenticate(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return authenticate(issuer, true)
}

// OptionalAuthenticate lets anonymous callers through as a regular user
// would be seen. A token that is present must still be valid.
func OptionalAuthenticate(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return authenticate(issuer, false)
}

func authenticate(issuer *auth.Issuer, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeMessage(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header required")
				return
			}
			id, err := issuer.Parse(strings.TrimSpace(token))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			ctx := auth.WithIdentity(r.Context(), id)
			log := zerolog.Ctx(ctx).With().Str("user", id.UserID).Str("role", string(id.Role)).Logger()
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx)))
		})
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header required")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				writeMessage(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identity returns the authenticated caller, or the zero value for an
// anonymous caller on a public route.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
