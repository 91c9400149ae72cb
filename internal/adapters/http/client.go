package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitsuha/hoyo-qr-bot/pkg/utils"
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Status)
}

type FetchOptions struct {
	Method            string
	Form              url.Values
	JSON              interface{}
	AdditionalHeaders map[string]string
}

type APIClient struct {
	UserAgent  string
	HTTPClient *http.Client
	Log        zerolog.Logger
}

func NewAPIClient(log zerolog.Logger) *APIClient {
	return &APIClient{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		Log: log,
	}
}

func (c *APIClient) baseHeaders() map[string]string {
	return map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      c.UserAgent,
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	}
}

// Fetch performs one remote call and returns the raw response body.
// Non-2xx statuses surface as *HTTPError; callers decode envelopes
// themselves.
func (c *APIClient) Fetch(ctx context.Context, endpoint string, opts *FetchOptions) ([]byte, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.Form != nil && opts.JSON != nil {
		return nil, fmt.Errorf("cannot specify both Form and JSON")
	}

	var (
		reqBody     io.Reader
		contentType string
	)
	switch {
	case opts.Form != nil:
		reqBody = strings.NewReader(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case opts.JSON != nil:
		jsonBody, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.baseHeaders() {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range opts.AdditionalHeaders {
		req.Header.Set(key, value)
	}

	c.Log.Debug().Str("method", opts.Method).Str("url", endpoint).Msg("remote call")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.Log.Debug().Str("url", endpoint).Int("status", res.StatusCode).
		Msg(utils.BeautifyJSON(resBodyBytes))

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return resBodyBytes, nil
	}

	return nil, &HTTPError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       resBodyBytes,
	}
}
