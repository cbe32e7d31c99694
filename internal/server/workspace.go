package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	workspaceHeader = "X-Workspace-ID"

	// sessionKeyPrefix namespaces auth sessions in Redis. The
	// value stored under session:<token> is the workspace id.
	sessionKeyPrefix = "session:"
)

// WorkspaceFrom returns the workspace resolved for the request,
// or "".
func WorkspaceFrom(ctx context.Context) string {
	ws, _ := ctx.Value(workspaceKey).(string)
	return ws
}

// WithWorkspace returns ctx scoped to workspace id.
func WithWorkspace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workspaceKey, id)
}

// resolveWorkspace scopes the request to a tenant. With Redis
// configured the bearer token is looked up as a session key;
// otherwise the X-Workspace-ID header is trusted.
func (s *Server) resolveWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ws string
		if s.redis == nil {
			ws = strings.TrimSpace(r.Header.Get(workspaceHeader))
		} else {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized,
					"missing bearer token")
				return
			}
			id, err := s.redis.Get(
				r.Context(), sessionKeyPrefix+token,
			).Result()
			switch {
			case errors.Is(err, redis.Nil):
				writeError(w, http.StatusUnauthorized,
					"invalid or expired session")
				return
			case err != nil:
				s.entry(r).WithError(err).Error("session lookup failed")
				writeError(w, http.StatusInternalServerError,
					"internal server error")
				return
			}
			ws = strings.TrimSpace(id)
		}
		if ws == "" {
			writeError(w, http.StatusUnauthorized,
				"workspace is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws)))
	})
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
