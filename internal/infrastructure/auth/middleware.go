package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/honeynil/UsersLedgerService/internal/infrastructure/observability"
)

type serviceKey struct{}

// ServiceFromContext returns the authenticated calling service.
func ServiceFromContext(ctx context.Context) (string, bool) {
	service, ok := ctx.Value(serviceKey{}).(string)
	return service, ok
}

func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization header missing")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization header")
				return
			}

			service, err := ValidateServiceToken(secret, parts[1])
			if err != nil {
				slog.Warn("rejected service token", "path", r.URL.Path, "error", err)
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), serviceKey{}, service)
			ctx = observability.WithContext(ctx, "service", service)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
