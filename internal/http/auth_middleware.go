package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/service/auth"
)

type authContextKey string

const contextKeyUser authContextKey = "expensetracker-user"

const credentialsError = "Could not validate credentials"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the bearer token to a live user before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and stores the user in the context.
// Every failure, including a store error, is answered with 401.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		r.recordAuthRejection("missing_token")
		writeUnauthorized(w, credentialsError)
		return req.Context(), false
	}
	user, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		reason := "invalid_token"
		switch {
		case errors.Is(err, auth.ErrIdentityNotFound):
			reason = "unknown_subject"
		case !errors.Is(err, auth.ErrInvalidToken):
			reason = "store_error"
			r.logger.Error("token subject lookup failed", "error", err, "path", req.URL.Path)
		}
		if reason != "store_error" {
			r.logger.Warn("token validation failed", "reason", reason, "path", req.URL.Path)
		}
		r.recordAuthRejection(reason)
		writeUnauthorized(w, credentialsError)
		return req.Context(), false
	}
	return context.WithValue(req.Context(), contextKeyUser, user), true
}

// userFromContext returns the user resolved by requireAuth.
func userFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(*domain.User)
	return user, ok && user != nil
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
