// Package api implements the hashnote REST API using chi.
package api

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey int

const userKey ctxKey = iota

// AuthMiddleware rejects unauthenticated requests with 401 and stores the
// resolved user id in the request context.
func AuthMiddleware(auth *Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.UserID(r)
			if err != nil {
				slog.Debug("auth rejected", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFrom returns the user id stored by AuthMiddleware.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}
