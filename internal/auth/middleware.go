package auth

import (
	"context"
	"net/http"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// Middleware resolves the caller's account from the bearer token and attaches
// it to the request context. Every downstream handler reads the account from
// the context only; resolution failure short-circuits before any storage
// access.
func Middleware(issuer *TokenIssuer, sessions *SessionCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := issuer.VerifyToken(tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if sessions != nil {
				revoked, err := sessions.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					http.Error(w, "session lookup failed", http.StatusServiceUnavailable)
					return
				}
				if revoked {
					http.Error(w, "session revoked", http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), accountIDKey, claims.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountID extracts the resolved account ID in handlers.
func AccountID(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}

// WithAccountID is used by tests to build a pre-resolved context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}
