package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/raphi011/gitgrip/internal/log"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 32 << 20
)

// restClient is the shared JSON-over-HTTP transport of the GitLab, Azure
// DevOps and Bitbucket adapters.
type restClient struct {
	platform  Type
	baseURL   string
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	rateLimit *rateLimitTracker
	authorize func(*retryablehttp.Request)
}

func newRESTClient(p Type, opts Options, headers rateHeaders, authorize func(*retryablehttp.Request)) *restClient {
	client := retryablehttp.NewClient()
	client.HTTPClient = opts.HTTPClient
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	// Hand the final response back instead of a generic "giving up" error
	// so status codes can be classified.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &restClient{
		platform:  p,
		baseURL:   opts.BaseURL,
		http:      client,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		rateLimit: newRateLimitTracker(opts.Clock, headers),
		authorize: authorize,
	}
}

// doRaw performs a request and returns the raw body of a 2xx response.
// Non-2xx responses become *Error via classify.
func (c *restClient) doRaw(ctx context.Context, op, method, path string, body any, accept string) ([]byte, http.Header, error) {
	if err := c.rateLimit.wait(ctx); err != nil {
		return nil, nil, networkError(c.platform, op, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, networkError(c.platform, op, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, parseError(c.platform, op, err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, networkError(c.platform, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "gitgrip")
	if c.authorize != nil {
		c.authorize(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, networkError(c.platform, op, err)
	}
	defer resp.Body.Close()

	c.rateLimit.update(resp.Header)
	log.FromContext(ctx).Debug("api request",
		"platform", c.platform, "method", method, "path", path,
		"status", resp.StatusCode, "took", time.Since(start).Round(time.Millisecond))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, networkError(c.platform, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := classifyStatus(c.platform, op, resp.StatusCode, errorMessage(data))
		if e.Kind == KindRateLimited {
			if d := c.rateLimit.retryAfter(resp.Header); d > 0 {
				e.Msg = fmt.Sprintf("%s (retry after %s)", e.Msg, d.Round(time.Second))
			}
		}
		return nil, resp.Header, e
	}
	return data, resp.Header, nil
}

// do performs a JSON request and decodes a 2xx body into out (if non-nil).
func (c *restClient) do(ctx context.Context, op, method, path string, body, out any) error {
	data, _, err := c.doRaw(ctx, op, method, path, body, "")
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return parseError(c.platform, op, err)
	}
	return nil
}

func (c *restClient) snapshot() RateLimitInfo {
	return c.rateLimit.snapshot()
}

// errorMessage extracts a human message from common JSON error shapes,
// falling back to the raw body.
func errorMessage(data []byte) string {
	var shape struct {
		Message any    `json:"message"`
		Error   any    `json:"error"`
		Detail  string `json:"error_description"`
	}
	if json.Unmarshal(data, &shape) == nil {
		for _, v := range []any{shape.Message, shape.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case map[string]any:
				if s, ok := m["message"].(string); ok && s != "" {
					return s
				}
				if b, err := json.Marshal(m); err == nil {
					return string(b)
				}
			case []any:
				if b, err := json.Marshal(m); err == nil {
					return string(b)
				}
			}
		}
		if shape.Detail != "" {
			return shape.Detail
		}
	}
	msg := string(bytes.TrimSpace(data))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
