package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Ycseeasy/explore-with-me/internal/api/problem"
	"github.com/Ycseeasy/explore-with-me/internal/idempotency"
)

const IdempotencyHeader = "Idempotency-Key"

const idempotencyContextKey contextKey = "idempotencyKey"

// Idempotency validates an optional Idempotency-Key header and exposes it
// through IdempotencyKey. Malformed keys are rejected rather than truncated,
// since a truncated key could collide with another request's.
func Idempotency(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := idempotency.ValidateKey(key); err != nil {
				problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid Idempotency-Key", err, env,
					problem.WithErrors(map[string]interface{}{IdempotencyHeader: "must be 1 to 128 characters on one line"}))
				return
			}
			ctx := context.WithValue(r.Context(), idempotencyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdempotencyKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	if value, ok := r.Context().Value(idempotencyContextKey).(string); ok {
		return value
	}
	return ""
}
