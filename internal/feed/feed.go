package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/0xmattthemii/aryes-news-feed/internal/config"
	"github.com/mmcdole/gofeed"
)

// Fetcher returns the raw entries of one feed.
type Fetcher interface {
	Fetch(ctx context.Context, source config.Feed) ([]*gofeed.Item, error)
}

type RSSFetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewRSSFetcher(client *http.Client) *RSSFetcher {
	p := gofeed.NewParser()
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	p.Client = client
	p.UserAgent = "aryes-news-feed/1.0"
	return &RSSFetcher{parser: p, timeout: 30 * time.Second}
}

func (f *RSSFetcher) Fetch(ctx context.Context, source config.Feed) ([]*gofeed.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}
	return feed.Items, nil
}
