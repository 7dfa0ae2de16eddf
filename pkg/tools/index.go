package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/fluxlite/fluxlite/pkg/manifest"
)

// IndexFetcher downloads a Helm repository's index.yaml into the
// artifact directory. Repository indexes are always re-fetched (the
// revision floats) so the download path carries retries.
type IndexFetcher struct {
	logger zerolog.Logger
	client *retryablehttp.Client
}

// NewIndexFetcher creates an index fetcher with bounded retries.
func NewIndexFetcher(logger zerolog.Logger) *IndexFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil

	return &IndexFetcher{
		logger: logger.With().Str("component", "index-fetcher").Logger(),
		client: client,
	}
}

// Fetch downloads {url}/index.yaml into dest/index.yaml.
func (f *IndexFetcher) Fetch(ctx context.Context, repo *manifest.HelmRepository, dest string) error {
	indexURL := strings.TrimSuffix(repo.URL, "/") + "/index.yaml"

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build index request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", indexURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", indexURL, resp.StatusCode)
	}

	out, err := os.Create(filepath.Join(dest, "index.yaml"))
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	f.logger.Debug().Str("url", indexURL).Int64("bytes", n).Msg("Fetched repository index")
	return nil
}
