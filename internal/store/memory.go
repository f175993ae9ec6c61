package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// MemoryConfig holds connection settings for the memory service.
type MemoryConfig struct {
	Endpoint string
	APIKey   string
}

// MemoryClient writes records to the memory service over HTTP.
type MemoryClient struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

func NewMemoryClient(cfg MemoryConfig) (*MemoryClient, error) {
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	return &MemoryClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		httpc:    &http.Client{},
	}, nil
}

type memoryPutRequest struct {
	ID       string            `json:"id"`
	Payload  []byte            `json:"payload,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Put posts the record to /v1/memories. The caller's context bounds the
// request; transport failures classify as timeouts so they can be retried.
func (c *MemoryClient) Put(ctx context.Context, id string, payload []byte, metadata map[string]string) error {
	body, err := json.Marshal(memoryPutRequest{ID: id, Payload: payload, Metadata: metadata})
	if err != nil {
		return &Error{Kind: KindValidation, Op: "memory put", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/memories", bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindUnknown, Op: "memory put", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Kind: KindTimeout, Op: "memory put", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	return &Error{
		Kind: kindForStatus(resp.StatusCode),
		Op:   "memory put",
		Err:  fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readSnippet(resp.Body)),
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

// readSnippet returns up to 1KB of the response body for error messages.
func readSnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return "<no body>"
	}
	return string(bytes.TrimSpace(b))
}

// normalizeEndpoint validates the endpoint and defaults the scheme to https
// when none is given.
func normalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
