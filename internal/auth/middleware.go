package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const identityKey contextKey = "identity"

type identity struct {
	userID   string
	verified bool
}

// Middleware verifies bearer tokens against the OIDC issuer and stores the
// subject in the request context.
func Middleware(ctx context.Context, issuer string) (func(http.Handler) http.Handler, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	// SkipClientIDCheck: tokens are issued to the frontend client, not to us.
	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			idToken, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			var claims struct {
				Sub string `json:"sub"`
			}
			if err := idToken.Claims(&claims); err != nil {
				http.Error(w, "failed to parse claims", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Sub)))
		})
	}, nil
}

// Identify records the token subject without verifying the signature. It is
// used when no issuer is configured, so actions can still be attributed in
// logs. It never rejects a request.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, err := ExtractTokenFromRequest(r); err == nil {
			if sub, err := ExtractUserIDFromJWT(token); err == nil {
				r = r.WithContext(withUnverifiedUserID(r.Context(), sub))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID stores a subject whose token has been verified.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey, identity{userID: userID, verified: true})
}

func withUnverifiedUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey, identity{userID: userID})
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(identityKey).(identity); ok {
		return id.userID
	}
	return ""
}

// Verified reports whether the subject in ctx came from a verified token.
func Verified(ctx context.Context) bool {
	id, ok := ctx.Value(identityKey).(identity)
	return ok && id.verified
}

// Actor labels the caller for log lines. Subjects read from unverified
// tokens are prefixed with "unverified:".
func Actor(ctx context.Context) string {
	id, ok := ctx.Value(identityKey).(identity)
	switch {
	case !ok || id.userID == "":
		return ""
	case id.verified:
		return id.userID
	default:
		return "unverified:" + id.userID
	}
}
