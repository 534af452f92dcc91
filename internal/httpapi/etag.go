package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// etag returns a strong entity tag for body.
func etag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// matches reports whether an If-None-Match header value matches tag.
func matches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}

// writeCacheable writes a 200 envelope with an ETag, or 304 when the
// client already holds the same representation.
func writeCacheable(w http.ResponseWriter, r *http.Request, message string, data any) {
	body, err := json.Marshal(envelope{Message: message, Data: data})
	if err != nil {
		writeError(w, r, err)
		return
	}
	tag := etag(body)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")

	if inm := r.Header.Get("If-None-Match"); inm != "" && matches(inm, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Warn("writing response", "error", err)
	}
}
