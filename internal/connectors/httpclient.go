package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// HTTPClient wraps a retrying HTTP client shared by the connectors that talk
// JSON APIs (LA County, San Diego, Riverside/San Bernardino LIVES, CPRA).
// Retries transient 5xx/429 responses with exponential backoff, mirroring
// the retry posture the teacher's geocoding/nominatim client applies to a
// single upstream.
type HTTPClient struct {
	retryable *retryablehttp.Client
	userAgent string
}

// NewHTTPClient builds an HTTPClient bound to cfg's timeout and user agent.
func NewHTTPClient(cfg Config, logger zerolog.Logger) *HTTPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.EffectiveTimeout()
	client.Logger = nil // silence retryablehttp's own logging; we log at the call site
	ua := cfg.UserAgent
	if ua == "" {
		ua = "trustdirectory-connector/1.0"
	}
	return &HTTPClient{retryable: client, userAgent: ua}
}

// GetJSON performs a GET request and decodes a JSON response body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.Get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// Get performs a GET request and returns the raw response body.
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.retryable.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return body, nil
}
