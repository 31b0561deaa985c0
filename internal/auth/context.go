package auth

import "context"

type contextKey struct{}

// WithClaims кладёт проверенные клеймы в контекст запроса.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext достаёт клеймы, положенные middleware аутентификации.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}
