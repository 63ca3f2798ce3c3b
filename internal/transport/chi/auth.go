package chi

import (
	"crypto/sha256"
	"net/http"
	"strings"
)

// exemptPaths bypass authentication and rate limiting.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" with one of
// apiKeys. Keys are compared by SHA-256 digest so lookup time does not
// depend on how much of a guess matches. With no keys auth is off.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	digests := make(map[[sha256.Size]byte]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			digests[sha256.Sum256([]byte(k))] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem == "" {
				if _, ok := digests[sha256.Sum256([]byte(token))]; !ok {
					problem = "invalid api key"
				}
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="seqdex"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, problem)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token, or says why it can't. The scheme name
// is case-insensitive.
func bearerToken(header string) (token, problem string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}
