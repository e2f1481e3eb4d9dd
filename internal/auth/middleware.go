package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/foodmatch/matchd/internal/model"
)

type ctxKey struct{}

// UserFromContext returns the authenticated user attached by middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*model.User)
	return u, ok
}

// WithUser attaches a user to the context. Exported for handler tests.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Middleware resolves a Bearer token into a user when present. It never
// rejects: handlers that require identity check the context themselves.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token != "" {
			if user, err := s.Verify(r.Context(), token); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
