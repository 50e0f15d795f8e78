// Package azure downloads blobs from Azure Blob Storage over its REST API
// using SAS-token authentication.
package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	accountURL string
	sasToken   string
	httpClient *http.Client
}

type Options struct {
	RequestTimeout time.Duration
}

func New(accountURL, sasToken string) *Client {
	return NewWithOptions(accountURL, sasToken, Options{})
}

func NewWithOptions(accountURL, sasToken string, options Options) *Client {
	timeout := options.RequestTimeout
	if timeout <= 0 {
		// The master dataset runs to hundreds of megabytes.
		timeout = 5 * time.Minute
	}
	return &Client{
		accountURL: strings.TrimRight(accountURL, "/"),
		sasToken:   strings.TrimPrefix(sasToken, "?"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Download streams the blob body. The caller owns the returned reader and
// must close it.
func (c *Client) Download(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%s/%s", c.accountURL, container, blob)
	if c.sasToken != "" {
		url += "?" + c.sasToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob request: %w", err)
	}
	req.Header.Set("x-ms-version", "2021-10-04")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob request: %w", err)
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return nil, fmt.Errorf("blob status %s/%s: %s: %s", container, blob, resp.Status, msg)
		}
		return nil, fmt.Errorf("blob status %s/%s: %s", container, blob, resp.Status)
	}
	return resp.Body, nil
}
