package transport

import (
	"fmt"
	"net/url"
)

// parseEndpoint validates the chat endpoint and returns it normalized.
func parseEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse chat endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("chat endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("chat endpoint %q: missing host", endpoint)
	}
	u.Fragment = ""
	return u.String(), nil
}
