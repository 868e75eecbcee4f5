package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"mercator-hq/wastewatch/pkg/httpapi/types"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "x-api-key"

// msgInvalidAPIKey is the error body for rejected keys.
const msgInvalidAPIKey = "Invalid API key"

// APIKeyValidator checks API keys against a fixed set.
type APIKeyValidator struct {
	hashes [][sha256.Size]byte
}

// NewAPIKeyValidator creates a validator for keys. Empty keys are ignored.
func NewAPIKeyValidator(keys []string) *APIKeyValidator {
	v := &APIKeyValidator{}
	for _, k := range keys {
		if k == "" {
			continue
		}
		v.hashes = append(v.hashes, sha256.Sum256([]byte(k)))
	}
	return v
}

// Enabled reports whether any key is configured.
func (v *APIKeyValidator) Enabled() bool {
	return len(v.hashes) > 0
}

// Validate reports whether key matches a configured key. Keys are compared
// as fixed-size digests in constant time.
func (v *APIKeyValidator) Validate(key string) bool {
	if key == "" {
		return false
	}
	sum := sha256.Sum256([]byte(key))
	match := 0
	for i := range v.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], v.hashes[i][:])
	}
	return match == 1
}

// APIKey rejects requests without a valid x-api-key header with a 403 and
// the standard error body. When v has no keys it is a pass-through.
func APIKey(v *APIKeyValidator) Middleware {
	return func(next http.Handler) http.Handler {
		if !v.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Validate(r.Header.Get(APIKeyHeader)) {
				slog.WarnContext(r.Context(), "rejected API key",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"key_present", r.Header.Get(APIKeyHeader) != "",
				)
				WriteJSON(w, http.StatusForbidden, types.NewErrorResponse(msgInvalidAPIKey))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
