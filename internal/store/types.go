package store

import "time"

// MediaKind distinguishes TV series from movies in the cache and on the
// catalog API.
type MediaKind string

const (
	MediaTV    MediaKind = "tv"
	MediaMovie MediaKind = "movie"
)

func (k MediaKind) Valid() bool {
	return k == MediaTV || k == MediaMovie
}

// ShowRecord is one cached title. TMDBID is the immutable primary key; all
// writes are idempotent upserts keyed on it.
//
// IMDBID is a cross-reference filled opportunistically from TMDB external
// ids. TVMazeID is a reserved cross-reference column with no producer yet; it
// is stored and carried but nothing reads it.
type ShowRecord struct {
	TMDBID   int64
	IMDBID   string
	TVMazeID int64

	Title    string
	Year     int
	Kind     MediaKind
	Overview string
	Genres   string
	Status   string
	Seasons  int
	Episodes int

	// PosterData is a base64 data URI; empty until the first successful
	// poster fetch.
	PosterData string
	RTScore    string

	PersonalLink string
	Category     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPoster reports whether the poster was already fetched and embedded.
func (r ShowRecord) HasPoster() bool {
	return r.PosterData != ""
}
