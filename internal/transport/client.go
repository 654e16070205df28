package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/namikmesic/canvas-stream/internal/stream"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 64 * 1024

// Client opens streaming chat requests against the responses endpoint.
type Client struct {
	endpoint string
	clientID string
	http     *http.Client
}

// NewClient builds a Client. connectTimeout bounds dialing and waiting for
// response headers; the body itself has no overall deadline.
func NewClient(endpoint, clientID string, connectTimeout time.Duration) (*Client, error) {
	target, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if connectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
		transport.ResponseHeaderTimeout = connectTimeout
		transport.TLSHandshakeTimeout = connectTimeout
	}

	return &Client{
		endpoint: target,
		clientID: clientID,
		http: &http.Client{
			Transport: transport,
			// No overall timeout, streams are long-lived
			Timeout: 0,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// NewClientWithHTTP builds a Client around an existing http.Client.
func NewClientWithHTTP(endpoint, clientID string, hc *http.Client) (*Client, error) {
	target, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: target, clientID: clientID, http: hc}, nil
}

// Open POSTs body and returns the response stream. Transport failures come
// back as network errors and non-2xx responses as API errors. The caller
// closes the returned body.
func (c *Client) Open(ctx context.Context, userToken string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, stream.NewAPIError("create request", err)
	}
	req.Header = prepareStreamHeaders(userToken, c.clientID)

	log.Debug().
		Str("url", c.endpoint).
		Interface("headers", headerMap(req.Header)).
		Int("body_bytes", len(body)).
		Msg("opening chat stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, stream.NewNetworkError("request canceled", err)
		}
		return nil, stream.NewNetworkError("upstream request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return nil, stream.NewNetworkError(fmt.Sprintf("read error response (status %d)", resp.StatusCode), readErr)
		}
		apiErr := stream.DecodeAPIError(string(raw))
		apiErr.Description = fmt.Sprintf("status %d: %s", resp.StatusCode, apiErr.Description)
		return nil, apiErr
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		log.Warn().Str("content_type", ct).Msg("chat stream has unexpected content type, parsing as SSE")
	}
	return resp.Body, nil
}
