package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/model"
)

type ctxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the signed-in user, or nil.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(ctxKey{}).(*model.User)
	return u
}

// RequireUser returns the signed-in user or ErrUnauthorized.
func RequireUser(ctx context.Context) (*model.User, error) {
	u := UserFrom(ctx)
	if u == nil {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// RequireAdmin returns the signed-in admin. Anonymous callers get
// ErrUnauthorized, signed-in non-admins ErrForbidden.
func RequireAdmin(ctx context.Context) (*model.User, error) {
	u, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrForbidden
	}
	return u, nil
}

// Middleware attaches the bearer token's user to the request context.
// Requests without a usable token continue anonymously.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.Resolve(r.Context(), raw)
		if err != nil {
			zap.L().Debug("auth: token rejected",
				zap.String("component", "auth"),
				zap.Error(err),
			)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
