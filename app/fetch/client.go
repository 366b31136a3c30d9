// Package fetch is the outbound HTTP collaborator used for images, pages,
// the link shortener and oembed providers. Every call is throttled and
// bounded by a fixed deadline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrBodyTooLarge     = errors.New("response body too large")
)

const maxBodySize = 10 << 20

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	userAgent  string
	maxBody    int64
}

// NewClient builds a client whose requests each get their own deadline of
// timeout. A non-positive rps disables throttling.
func NewClient(timeout time.Duration, rps float64, userAgent string) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}

	return &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
		timeout:    timeout,
		userAgent:  userAgent,
		maxBody:    maxBodySize,
	}
}

// Fetch performs a GET and returns the status code with the body. Non-200
// statuses are not errors here; callers decide what they accept.
func (c *Client) Fetch(ctx context.Context, url string, followRedirects bool) (int, []byte, error) {
	url = NormalizeURL(url)
	if url == "" {
		return 0, nil, fmt.Errorf("failed to fetch: empty url")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	client := c.httpClient
	if !followRedirects {
		noRedirect := *c.httpClient
		noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &noRedirect
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return resp.StatusCode, nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, url, c.maxBody)
	}

	return resp.StatusCode, body, nil
}

// FetchOK is Fetch with redirects followed and any status other than 200
// reported as ErrUnexpectedStatus.
func (c *Client) FetchOK(ctx context.Context, url string) ([]byte, error) {
	status, body, err := c.Fetch(ctx, url, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	return body, nil
}

// ImageSize downloads url and reports the decoded image dimensions.
func (c *Client) ImageSize(ctx context.Context, url string) (int, int, error) {
	body, err := c.FetchOK(ctx, url)
	if err != nil {
		return 0, 0, err
	}
	return DecodeImage(body)
}

// NormalizeURL gives protocol-relative URLs an http scheme.
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "//") {
		return "http:" + url
	}
	return url
}
