package pagemeta

import (
	"context"
	"log/slog"
)

type PageFetcher interface {
	FetchOK(ctx context.Context, url string) ([]byte, error)
}

type Fetcher struct {
	client PageFetcher
}

func NewFetcher(client PageFetcher) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses the page at url. Any failure yields empty
// metadata so callers can treat the page as having told us nothing.
func (f *Fetcher) Fetch(ctx context.Context, url string) *Metadata {
	if url == "" {
		return Empty()
	}

	body, err := f.client.FetchOK(ctx, url)
	if err != nil {
		slog.Debug("Failed to fetch page metadata", "url", url, "error", err)
		return Empty()
	}

	return Parse(body, url)
}
