package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Authenticator validates API keys against a configured set. Keys are held
// as SHA-256 hashes so raw secrets never sit in memory longer than the
// comparison itself.
type Authenticator struct {
	hashes [][]byte
}

// NewAuthenticator builds an Authenticator from raw API keys. Returns nil
// when the list is empty, which disables authentication entirely.
func NewAuthenticator(keys []string) *Authenticator {
	if len(keys) == 0 {
		return nil
	}
	a := &Authenticator{hashes: make([][]byte, 0, len(keys))}
	for _, key := range keys {
		sum := sha256.Sum256([]byte(key))
		a.hashes = append(a.hashes, sum[:])
	}
	return a
}

// HashAPIKey returns the hex-encoded SHA-256 hash of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Validate reports whether the presented key matches any configured key.
// Every configured hash is compared in constant time regardless of where a
// match occurs.
func (a *Authenticator) Validate(key string) bool {
	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, h := range a.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], h)
	}
	return match == 1
}

// ExtractAPIKey parses the Authorization header and returns the bearer
// token.
func ExtractAPIKey(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme: %s", parts[0])
	}

	return parts[1], nil
}

// AuthMiddleware rejects requests that do not carry a valid bearer key.
// The health endpoint stays open so probes work without credentials. A nil
// authenticator passes everything through.
func AuthMiddleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			key, err := ExtractAPIKey(r.Header.Get("Authorization"))
			if err != nil {
				AddError(r.Context(), err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !auth.Validate(key) {
				AddLogField(r.Context(), "error", "invalid api key")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
