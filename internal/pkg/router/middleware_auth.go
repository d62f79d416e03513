package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
)

// HeaderServiceKey carries the shared key of internal callers (the login service).
const HeaderServiceKey = "X-Service-Key"

func middlewareAuthentication(verifier jwt.JWT, public func(method, route string) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public(r.Method, matchedRoutePath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				writeJSON(w, errorResponse{Message: "Invalid or expired token"}, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}

// ServiceKey guards endpoints reserved for internal callers. An empty key
// rejects every request.
func ServiceKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(HeaderServiceKey)
			if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				writeJSON(w, errorResponse{Message: "Service authentication required"}, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
