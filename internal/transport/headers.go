package transport

import (
	"net/http"
	"strings"
)

const (
	headerUserID    = "userid"
	headerUserAgent = "User-Agent"
)

// Headers whose values must not reach logs.
var sensitiveHeaders = []string{
	"authorization",
	"x-api-key",
	headerUserID,
}

func prepareStreamHeaders(userToken, clientID string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	// Non-canonical key, sent exactly as the backend expects it.
	h[headerUserID] = []string{userToken}
	if clientID != "" {
		h.Set(headerUserAgent, clientID)
	}
	return h
}

func headerMap(h http.Header) map[string][]string {
	m := make(map[string][]string, len(h))
	for k, v := range h {
		if isSensitive(k) {
			m[k] = []string{"[REDACTED]"}
		} else {
			m[k] = v
		}
	}
	return m
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveHeaders {
		if lower == s {
			return true
		}
	}
	return false
}
