package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// imageConfig returns the poster base URL and preferred size, fetching
// /configuration once and caching the answer for the client's lifetime.
func (c *Client) imageConfig(ctx context.Context) (string, string, error) {
	c.imageMu.Lock()
	defer c.imageMu.Unlock()
	if c.imageBase != "" {
		return c.imageBase, c.imageSize, nil
	}

	var result tmdbConfigResult
	if err := c.get(ctx, "/configuration", nil, &result); err != nil {
		return "", "", err
	}

	base := result.Images.SecureBaseURL
	if base == "" {
		base = "https://image.tmdb.org/t/p/"
	}
	size := pickPosterSize(result.Images.PosterSizes)

	c.imageBase = base
	c.imageSize = size
	return base, size, nil
}

// pickPosterSize prefers w500 as a balance between quality and page weight,
// falling back to w780 and then the largest size the API offers.
func pickPosterSize(sizes []string) string {
	for _, want := range []string{"w500", "w780"} {
		for _, s := range sizes {
			if s == want {
				return s
			}
		}
	}
	if len(sizes) > 0 {
		return sizes[len(sizes)-1]
	}
	return "original"
}

// PosterDataURI downloads the poster behind a TMDB poster_path and returns
// it as a self-contained base64 data URI. An empty posterPath returns "".
func (c *Client) PosterDataURI(ctx context.Context, posterPath string) (string, error) {
	if posterPath == "" {
		return "", nil
	}
	base, size, err := c.imageConfig(ctx)
	if err != nil {
		return "", err
	}

	imageURL := base + size + posterPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("poster download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poster download: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("poster download: %w", err)
	}

	mime := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(posterPath), ".png") {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

// SetImageBase overrides the discovered image base URL. Intended for tests
// that serve posters from a local server.
func (c *Client) SetImageBase(base, size string) {
	c.imageMu.Lock()
	defer c.imageMu.Unlock()
	c.imageBase = base
	c.imageSize = size
}
