package player

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultOEmbedEndpoint = "https://www.youtube.com/oembed"

// OEmbedChecker asks the YouTube oEmbed endpoint whether a video can be embedded.
// Embedding-disabled videos answer 401 or 403, missing or private ones 404.
type OEmbedChecker struct {
	endpoint string
	client   *http.Client
}

// NewOEmbedChecker creates a checker. An empty endpoint uses the public YouTube one.
func NewOEmbedChecker(endpoint string, timeout time.Duration) *OEmbedChecker {
	if endpoint == "" {
		endpoint = defaultOEmbedEndpoint
	}
	return &OEmbedChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Check returns an error wrapping ErrEmbedUnavailable when the video cannot be embedded.
// Transport failures and unexpected statuses return nil: the widget error callback
// still catches those videos once the player is constructed.
func (c *OEmbedChecker) Check(ctx context.Context, videoID string) error {
	q := url.Values{}
	q.Set("url", WatchURL(videoID))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: embedding disabled for %s", ErrEmbedUnavailable, videoID)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrEmbedUnavailable, ErrVideoNotFound)
	default:
		return nil
	}
}
