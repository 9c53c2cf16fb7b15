package kie

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// maxImageBytes caps how much of a result body is read when fetching a
// URL result, guarding against a misbehaving endpoint.
const maxImageBytes = 32 << 20

// Materialize fetches a URL result and re-encodes it into the inline
// image representation, so downstream consumers never branch on whether
// a result was a URL or inline data.
func (c *Client) Materialize(ctx context.Context, url string) (*domain.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image fetch returned status %d", domain.ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image body: %v", domain.ErrTransport, err)
	}

	img, err := domain.NewImage(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, fmt.Errorf("%w: empty image body from %s", domain.ErrProtocol, url)
	}
	img.SourceURL = url
	return img, nil
}
