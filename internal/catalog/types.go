package catalog

import "github.com/showshelf/showshelf/internal/store"

// Candidate is one search result awaiting user confirmation. Candidates keep
// the API's own relevance ordering.
type Candidate struct {
	TMDBID     int64
	Title      string
	Year       int
	Kind       store.MediaKind
	Overview   string
	PosterPath string
}

// Detail is the full record for a confirmed title.
type Detail struct {
	TMDBID     int64
	IMDBID     string
	Title      string
	Year       int
	Kind       store.MediaKind
	Overview   string
	Genres     []string
	Status     string
	Seasons    int
	Episodes   int
	PosterPath string
}

// tmdbSearchResult covers both /search/tv and /search/movie payloads; the two
// endpoints use different field names for title and date.
type tmdbSearchResult struct {
	Results []struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		Overview     string `json:"overview"`
		PosterPath   string `json:"poster_path"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

type tmdbDetailResult struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
	Status       string `json:"status"`
	Seasons      int    `json:"number_of_seasons"`
	Episodes     int    `json:"number_of_episodes"`
	IMDBId       string `json:"imdb_id"`
	Genres       []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	ExternalIDs struct {
		IMDBId string `json:"imdb_id"`
	} `json:"external_ids"`
}

type tmdbConfigResult struct {
	Images struct {
		SecureBaseURL string   `json:"secure_base_url"`
		PosterSizes   []string `json:"poster_sizes"`
	} `json:"images"`
}

type tmdbFindResult struct {
	TVResults []struct {
		ID int64 `json:"id"`
	} `json:"tv_results"`
	MovieResults []struct {
		ID int64 `json:"id"`
	} `json:"movie_results"`
}
