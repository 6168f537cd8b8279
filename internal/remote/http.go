// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/oops"
)

// maxBundleSize caps the size of a fetched plugin bundle.
const maxBundleSize = 4 << 20

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	// Retries is the number of retries for failed requests.
	Retries int
	// WaitMin and WaitMax bound the backoff between retries.
	WaitMin time.Duration
	WaitMax time.Duration
	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration
	// Logger receives request and retry logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPSource fetches plugin bundles over HTTP.
type HTTPSource struct {
	client *retryablehttp.Client
}

// NewHTTPSource creates an HTTP bundle source.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	if opts.WaitMin > 0 {
		client.RetryWaitMin = opts.WaitMin
	}
	if opts.WaitMax > 0 {
		client.RetryWaitMax = opts.WaitMax
	}
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = slog.Default()
	if opts.Logger != nil {
		client.Logger = opts.Logger
	}

	return &HTTPSource{client: client}
}

// Fetch downloads the bundle at url.
func (s *HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, oops.In("remote").With("url", url).Wrapf(err, "build request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, oops.In("remote").With("url", url).Wrapf(err, "fetch bundle")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, oops.In("remote").
			With("url", url).
			With("status", resp.StatusCode).
			Errorf("fetch bundle: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleSize+1))
	if err != nil {
		return nil, oops.In("remote").With("url", url).Wrapf(err, "read bundle")
	}
	if len(body) > maxBundleSize {
		return nil, oops.In("remote").With("url", url).Errorf("bundle exceeds %d bytes", maxBundleSize)
	}
	return body, nil
}
