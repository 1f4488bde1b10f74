package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/showshelf/showshelf/internal/config"
	"github.com/showshelf/showshelf/internal/store"
)

const userAgent = "showshelf/1.0"

// Client is a thin TMDB v3 client. One attempt per call, no retry; the caller
// decides whether a failed lookup is worth repeating.
type Client struct {
	cfg        config.CatalogConfig
	httpClient *http.Client
	baseURL    string

	// image base + size from /configuration, discovered once
	imageMu   sync.Mutex
	imageBase string
	imageSize string
}

func NewClient(cfg config.CatalogConfig) (*Client, error) {
	if cfg.APIKey == "" && cfg.Bearer == "" {
		return nil, fmt.Errorf("tmdb api key or bearer token is required")
	}
	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20
	}
	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

// get performs an authenticated GET against the API and decodes the JSON
// body into out. Bearer auth wins over the api_key query parameter.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.cfg.Bearer == "" {
		query.Set("api_key", c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tmdb request %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tmdb decode %s: %w", path, err)
	}
	return nil
}

// Search returns candidate matches for a free-text title in the API's own
// relevance order. An empty result is a normal outcome, not an error.
//
// Fuzzy titles often fail on subtitle suffixes, so the lookup falls back in
// stages: exact query, then the part before a colon, then without the year
// hint.
func (c *Client) Search(ctx context.Context, kind store.MediaKind, title string, yearHint int) ([]Candidate, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid media kind %q", kind)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	candidates, err := c.search(ctx, kind, title, yearHint)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	if left, _, found := strings.Cut(title, ":"); found {
		candidates, err = c.search(ctx, kind, strings.TrimSpace(left), yearHint)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	if yearHint > 0 {
		return c.search(ctx, kind, title, 0)
	}
	return candidates, nil
}

func (c *Client) search(ctx context.Context, kind store.MediaKind, title string, yearHint int) ([]Candidate, error) {
	query := url.Values{}
	query.Set("query", title)
	if yearHint > 0 {
		if kind == store.MediaTV {
			query.Set("first_air_date_year", fmt.Sprintf("%d", yearHint))
		} else {
			query.Set("year", fmt.Sprintf("%d", yearHint))
		}
	}

	var result tmdbSearchResult
	if err := c.get(ctx, "/search/"+string(kind), query, &result); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(result.Results))
	for _, r := range result.Results {
		name := r.Title
		if name == "" {
			name = r.Name
		}
		dateStr := r.ReleaseDate
		if dateStr == "" {
			dateStr = r.FirstAirDate
		}
		candidates = append(candidates, Candidate{
			TMDBID:     r.ID,
			Title:      name,
			Year:       yearOf(dateStr),
			Kind:       kind,
			Overview:   r.Overview,
			PosterPath: r.PosterPath,
		})
	}
	return candidates, nil
}

// Details returns the full record for a confirmed tmdb id, including the IMDb
// cross-reference.
func (c *Client) Details(ctx context.Context, kind store.MediaKind, tmdbID int64) (Detail, error) {
	if !kind.Valid() {
		return Detail{}, fmt.Errorf("invalid media kind %q", kind)
	}
	query := url.Values{}
	query.Set("append_to_response", "external_ids")

	var result tmdbDetailResult
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", kind, tmdbID), query, &result); err != nil {
		return Detail{}, err
	}

	name := result.Title
	if name == "" {
		name = result.Name
	}
	dateStr := result.ReleaseDate
	if dateStr == "" {
		dateStr = result.FirstAirDate
	}
	imdbID := result.IMDBId
	if imdbID == "" {
		imdbID = result.ExternalIDs.IMDBId
	}
	genres := make([]string, 0, len(result.Genres))
	for _, g := range result.Genres {
		genres = append(genres, g.Name)
	}

	return Detail{
		TMDBID:     result.ID,
		IMDBID:     imdbID,
		Title:      name,
		Year:       yearOf(dateStr),
		Kind:       kind,
		Overview:   result.Overview,
		Genres:     genres,
		Status:     result.Status,
		Seasons:    result.Seasons,
		Episodes:   result.Episodes,
		PosterPath: result.PosterPath,
	}, nil
}

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

// ExtractIMDBID pulls an IMDb title id (tt1234567) out of a bare id or an
// imdb.com URL. Returns "" when text holds neither.
func ExtractIMDBID(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if imdbIDPattern.MatchString(text) {
		return text
	}
	parsed, err := url.Parse(text)
	if err != nil || !strings.Contains(parsed.Host, "imdb.com") {
		return ""
	}
	for _, seg := range strings.Split(parsed.Path, "/") {
		if imdbIDPattern.MatchString(seg) {
			return seg
		}
	}
	return ""
}

// ResolveIMDB maps an IMDb id or URL to a tmdb id via /find. The boolean
// reports whether anything matched.
func (c *Client) ResolveIMDB(ctx context.Context, text string) (store.MediaKind, int64, bool, error) {
	imdbID := ExtractIMDBID(text)
	if imdbID == "" {
		return "", 0, false, fmt.Errorf("no imdb id in %q", text)
	}

	query := url.Values{}
	query.Set("external_source", "imdb_id")

	var result tmdbFindResult
	if err := c.get(ctx, "/find/"+imdbID, query, &result); err != nil {
		return "", 0, false, err
	}
	if len(result.TVResults) > 0 {
		return store.MediaTV, result.TVResults[0].ID, true, nil
	}
	if len(result.MovieResults) > 0 {
		return store.MediaMovie, result.MovieResults[0].ID, true, nil
	}
	return "", 0, false, nil
}

func yearOf(dateStr string) int {
	if len(dateStr) < 4 {
		return 0
	}
	y := 0
	fmt.Sscanf(dateStr[:4], "%d", &y)
	return y
}
