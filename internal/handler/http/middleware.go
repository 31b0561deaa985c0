package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/auth"
)

// RequestLogger пишет одну структурированную строку на запрос.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// Authenticator проверяет Bearer-токен и кладёт клеймы в контекст.
// Запросы без валидного токена дальше не проходят.
func Authenticator(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization required")
				return
			}

			claims, err := tm.Verify(token)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin пропускает дальше только администраторов.
// Должен стоять после Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		if err := auth.RequireAdmin(claims); err != nil {
			respondWithError(w, http.StatusForbidden, "Admin rights required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
