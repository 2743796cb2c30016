package bgs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
	"go.uber.org/zap"
)

// Config holds BGS client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the corporate subject directory over HTTP. It
// implements external.SubjectDirectory.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new BGS client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FindSubject fetches the veteran record for a file number. Returns
// (nil, nil) when the directory has no matching record.
func (c *Client) FindSubject(ctx context.Context, fileNumber string) (*external.Subject, error) {
	endpoint := fmt.Sprintf("%s/veterans/%s", c.baseURL, url.PathEscape(fileNumber))

	var subject external.Subject
	status, err := c.getJSON(ctx, endpoint, &subject)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected BGS response status: %d", status)
	}

	return &subject, nil
}

// Accessible reports whether the current station may read the veteran's
// file. Sensitive files come back as forbidden.
func (c *Client) Accessible(ctx context.Context, fileNumber string) (bool, error) {
	endpoint := fmt.Sprintf("%s/veterans/%s/access", c.baseURL, url.PathEscape(fileNumber))

	var result struct {
		Accessible bool `json:"accessible"`
	}
	status, err := c.getJSON(ctx, endpoint, &result)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return result.Accessible, nil
	case http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected BGS response status: %d", status)
	}
}

// getJSON performs a GET and decodes the body when the status carries
// one. Non-2xx statuses are returned to the caller for interpretation.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build BGS request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("BGS request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return 0, fmt.Errorf("BGS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("failed to decode BGS response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
