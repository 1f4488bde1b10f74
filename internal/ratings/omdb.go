package ratings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/showshelf/showshelf/internal/config"
	"github.com/showshelf/showshelf/internal/store"
)

// Client fetches Rotten Tomatoes scores from the OMDb API. The whole source
// is optional: without an API key every lookup reports "no score" instead of
// failing.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

func NewClient(cfg config.RatingsConfig) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://www.omdbapi.com/"
	}
	return &Client{
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type omdbResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Ratings  []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// RottenTomatoes returns the critic score (e.g. "93%") for a title. The
// lookup goes by IMDb id when one is known, otherwise by title and year.
// A missing score is a normal outcome reported via the boolean.
func (c *Client) RottenTomatoes(ctx context.Context, rec store.ShowRecord) (string, bool, error) {
	if !c.Enabled() {
		return "", false, nil
	}

	query := url.Values{}
	query.Set("apikey", c.apiKey)
	if rec.IMDBID != "" {
		query.Set("i", rec.IMDBID)
	} else {
		query.Set("t", rec.Title)
		if rec.Kind == store.MediaTV {
			query.Set("type", "series")
		} else {
			query.Set("type", "movie")
		}
		if rec.Year > 0 {
			query.Set("y", fmt.Sprintf("%d", rec.Year))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.apiURL, "/")+"/?"+query.Encode(), nil)
	if err != nil {
		return "", false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("omdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("omdb request: unexpected status %s", resp.Status)
	}

	var payload omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", false, fmt.Errorf("omdb decode: %w", err)
	}
	// OMDb reports unknown titles inside a 200 response.
	if payload.Response != "True" {
		return "", false, nil
	}
	for _, rating := range payload.Ratings {
		if rating.Source == "Rotten Tomatoes" {
			return rating.Value, true, nil
		}
	}
	return "", false, nil
}
