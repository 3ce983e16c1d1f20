package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authcore "github.com/synccord/authcore"
)

type principalContextKey struct{}

// PrincipalFromContext returns the Principal stored by Guard for the
// current request.
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok
}

// Guard authorizes each request with the given required scopes before
// handing it to the next handler. The client IP and User-Agent are bound
// into the request context first, so the engine can enforce the token's
// user-agent binding, and the resolved Principal is stored in the context
// for handlers.
func Guard(engine *authcore.Engine, requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcore.WithUserAgent(r.Context(), r.Header.Get("User-Agent"))
			ctx = authcore.WithClientIP(ctx, clientIP(r))

			principal, err := engine.Authorize(ctx, token, requiredScopes)
			if err != nil {
				http.Error(w, "unauthorized", statusFor(err))
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, authcore.ErrPermissionDenied), errors.Is(err, authcore.ErrAccountBanned):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
