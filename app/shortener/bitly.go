// Package shortener turns article links into short links through a
// bit.ly v3 compatible endpoint.
package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var ErrShortenFailed = errors.New("shortener rejected the request")

type Credentials struct {
	Login  string
	APIKey string
}

func (c Credentials) Valid() bool {
	return c.Login != "" && c.APIKey != ""
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, followRedirects bool) (int, []byte, error)
}

type Client struct {
	fetcher  Fetcher
	endpoint string
}

func NewClient(fetcher Fetcher, endpoint string) *Client {
	return &Client{fetcher: fetcher, endpoint: endpoint}
}

type response struct {
	StatusCode int    `json:"status_code"`
	StatusTxt  string `json:"status_txt"`
	Data       struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *Client) Shorten(ctx context.Context, longURL string, creds Credentials) (string, error) {
	if !creds.Valid() {
		return "", fmt.Errorf("%w: missing credentials", ErrShortenFailed)
	}

	params := url.Values{}
	params.Set("login", creds.Login)
	params.Set("apiKey", creds.APIKey)
	params.Set("longUrl", longURL)

	status, body, err := c.fetcher.Fetch(ctx, c.endpoint+"?"+params.Encode(), true)
	if err != nil {
		return "", fmt.Errorf("failed to call shortener: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: http status %d", ErrShortenFailed, status)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode shortener response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Data.URL == "" {
		return "", fmt.Errorf("%w: %d %s", ErrShortenFailed, resp.StatusCode, resp.StatusTxt)
	}

	return resp.Data.URL, nil
}
