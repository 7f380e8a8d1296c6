package lexicon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/getentag/entag/internal"
)

const (
	fetchRetryMax = 3
	fetchTimeout  = 30 * time.Second
)

// Fetcher downloads lexicon packs over HTTP with retries.
type Fetcher struct {
	client *retryablehttp.Client
}

func NewFetcher() *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = fetchRetryMax
	client.HTTPClient.Timeout = fetchTimeout
	client.Logger = internal.NewLeveledLogrus(log)
	client.Backoff = retryablehttp.DefaultBackoff
	client.CheckRetry = retryablehttp.DefaultRetryPolicy

	return &Fetcher{client: client}
}

// Fetch downloads and decodes a single pack. The pack is not added to any
// library; callers apply it so the schema gate runs in one place.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Pack, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lexicon request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lexicon pack from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"failed to fetch lexicon pack from %s: status %d",
			url,
			resp.StatusCode,
		)
	}

	pack, err := LoadPack(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lexicon pack from %s: %w", url, err)
	}

	return pack, nil
}
