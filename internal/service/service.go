package service

import (
	"context"
	"errors"
	"strings"

	"github.com/showshelf/showshelf/internal/catalog"
	"github.com/showshelf/showshelf/internal/config"
	"github.com/showshelf/showshelf/internal/store"
	"github.com/showshelf/showshelf/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Catalog is the metadata lookup surface the service drives.
type Catalog interface {
	Search(ctx context.Context, kind store.MediaKind, title string, yearHint int) ([]catalog.Candidate, error)
	Details(ctx context.Context, kind store.MediaKind, tmdbID int64) (catalog.Detail, error)
	ResolveIMDB(ctx context.Context, text string) (store.MediaKind, int64, bool, error)
	PosterDataURI(ctx context.Context, posterPath string) (string, error)
}

// Ratings is the optional auxiliary score source.
type Ratings interface {
	Enabled() bool
	RottenTomatoes(ctx context.Context, rec store.ShowRecord) (string, bool, error)
}

// Store is the local cache surface the service drives.
type Store interface {
	Upsert(ctx context.Context, rec store.ShowRecord) error
	Get(ctx context.Context, tmdbID int64) (store.ShowRecord, bool, error)
	List(ctx context.Context) ([]store.ShowRecord, error)
	SetPoster(ctx context.Context, tmdbID int64, dataURI string) error
	SetRating(ctx context.Context, tmdbID int64, score string) error
	SetPersonalLink(ctx context.Context, tmdbID int64, url string) error
	SetCategory(ctx context.Context, tmdbID int64, label string) error
	Delete(ctx context.Context, tmdbID int64) error
	Backup(ctx context.Context, dir string) (string, error)
}

// Generator renders the shelf into the offline page.
type Generator interface {
	Generate(records []store.ShowRecord, settings config.Settings) error
}

// Service wires catalog, ratings, store and page generation into the
// search → confirm → cache → annotate → generate flow. All dependencies are
// handed in at construction; nothing here is global.
type Service struct {
	catalog  Catalog
	ratings  Ratings
	store    Store
	gen      Generator
	settings config.Settings
	cfg      *config.Config
}

func New(cfg *config.Config, settings config.Settings, cat Catalog, rat Ratings, st Store, gen Generator) *Service {
	return &Service{
		catalog:  cat,
		ratings:  rat,
		store:    st,
		gen:      gen,
		settings: settings,
		cfg:      cfg,
	}
}

// Search returns candidate matches for user confirmation. An empty slice is
// a normal outcome.
func (s *Service) Search(ctx context.Context, kind store.MediaKind, title string, yearHint int) ([]catalog.Candidate, error) {
	candidates, err := s.catalog.Search(ctx, kind, title, yearHint)
	if err != nil {
		return nil, WrapError(err, ErrNetwork, "catalog search failed").WithContext("title", title)
	}
	return candidates, nil
}

// ResolveIMDB maps an IMDb id or URL to a catalog id. The boolean reports
// whether the catalog knows the title.
func (s *Service) ResolveIMDB(ctx context.Context, text string) (store.MediaKind, int64, bool, error) {
	kind, id, ok, err := s.catalog.ResolveIMDB(ctx, text)
	if err != nil {
		return "", 0, false, WrapError(err, ErrNetwork, "imdb lookup failed")
	}
	return kind, id, ok, nil
}

// AddShow caches a confirmed match: full details are fetched, normalized and
// upserted, then the poster and rating are filled in. Poster and rating
// failures do not undo the add; they are logged and can be retried later.
func (s *Service) AddShow(ctx context.Context, kind store.MediaKind, tmdbID int64, category string) (store.ShowRecord, error) {
	detail, err := s.catalog.Details(ctx, kind, tmdbID)
	if err != nil {
		return store.ShowRecord{}, WrapError(err, ErrNetwork, "catalog details failed").WithContext("tmdb_id", tmdbID)
	}
	rec := recordOf(detail)
	rec.Category = category

	if err := s.store.Upsert(ctx, rec); err != nil {
		return store.ShowRecord{}, WrapError(err, ErrStorage, "cache write failed").WithContext("tmdb_id", tmdbID)
	}

	if _, err := s.ensurePoster(ctx, rec.TMDBID, detail.PosterPath); err != nil {
		log.Warn("poster fetch for %q failed: %v", rec.Title, err)
	}
	if err := s.refreshRating(ctx, rec); err != nil {
		log.Warn("rating fetch for %q failed: %v", rec.Title, err)
	}

	return s.mustGet(ctx, rec.TMDBID)
}

// EnsurePoster embeds the poster for a cached record, downloading it only if
// no poster is stored yet. With a poster already present this performs zero
// network calls.
func (s *Service) EnsurePoster(ctx context.Context, tmdbID int64) (bool, error) {
	rec, ok, err := s.store.Get(ctx, tmdbID)
	if err != nil {
		return false, WrapError(err, ErrStorage, "cache read failed").WithContext("tmdb_id", tmdbID)
	}
	if !ok {
		return false, NewError(ErrNotFound, "show is not cached").WithContext("tmdb_id", tmdbID)
	}
	if rec.HasPoster() {
		return false, nil
	}
	return s.fetchPoster(ctx, rec)
}

// ensurePoster is the AddShow path: the poster path is already known from
// the details call, so no extra catalog round trip is needed.
func (s *Service) ensurePoster(ctx context.Context, tmdbID int64, posterPath string) (bool, error) {
	if posterPath == "" {
		return false, nil
	}
	rec, ok, err := s.store.Get(ctx, tmdbID)
	if err != nil {
		return false, WrapError(err, ErrStorage, "cache read failed")
	}
	if !ok || rec.HasPoster() {
		return false, nil
	}
	dataURI, err := s.catalog.PosterDataURI(ctx, posterPath)
	if err != nil {
		return false, WrapError(err, ErrNetwork, "poster download failed")
	}
	if dataURI == "" {
		return false, nil
	}
	if err := s.store.SetPoster(ctx, tmdbID, dataURI); err != nil {
		return false, WrapError(err, ErrStorage, "poster write failed")
	}
	return true, nil
}

// fetchPoster re-asks the catalog for the poster path, then downloads and
// stores the image.
func (s *Service) fetchPoster(ctx context.Context, rec store.ShowRecord) (bool, error) {
	detail, err := s.catalog.Details(ctx, rec.Kind, rec.TMDBID)
	if err != nil {
		return false, WrapError(err, ErrNetwork, "catalog details failed").WithContext("tmdb_id", rec.TMDBID)
	}
	if detail.PosterPath == "" {
		return false, nil
	}
	dataURI, err := s.catalog.PosterDataURI(ctx, detail.PosterPath)
	if err != nil {
		return false, WrapError(err, ErrNetwork, "poster download failed").WithContext("tmdb_id", rec.TMDBID)
	}
	if dataURI == "" {
		return false, nil
	}
	if err := s.store.SetPoster(ctx, rec.TMDBID, dataURI); err != nil {
		return false, WrapError(err, ErrStorage, "poster write failed").WithContext("tmdb_id", rec.TMDBID)
	}
	return true, nil
}

// RefreshShow re-fetches metadata, poster and rating for one record,
// replacing whatever is stored.
func (s *Service) RefreshShow(ctx context.Context, tmdbID int64) error {
	rec, ok, err := s.store.Get(ctx, tmdbID)
	if err != nil {
		return WrapError(err, ErrStorage, "cache read failed").WithContext("tmdb_id", tmdbID)
	}
	if !ok {
		return NewError(ErrNotFound, "show is not cached").WithContext("tmdb_id", tmdbID)
	}

	detail, err := s.catalog.Details(ctx, rec.Kind, rec.TMDBID)
	if err != nil {
		return WrapError(err, ErrNetwork, "catalog details failed").WithContext("tmdb_id", tmdbID)
	}
	next := recordOf(detail)
	next.CreatedAt = rec.CreatedAt
	if err := s.store.Upsert(ctx, next); err != nil {
		return WrapError(err, ErrStorage, "cache write failed").WithContext("tmdb_id", tmdbID)
	}

	if detail.PosterPath != "" {
		dataURI, err := s.catalog.PosterDataURI(ctx, detail.PosterPath)
		if err != nil {
			return WrapError(err, ErrNetwork, "poster download failed").WithContext("tmdb_id", tmdbID)
		}
		if dataURI != "" {
			if err := s.store.SetPoster(ctx, tmdbID, dataURI); err != nil {
				return WrapError(err, ErrStorage, "poster write failed").WithContext("tmdb_id", tmdbID)
			}
		}
	}

	refreshed, err := s.mustGet(ctx, tmdbID)
	if err != nil {
		return err
	}
	if err := s.refreshRating(ctx, refreshed); err != nil {
		return err
	}
	return nil
}

func (s *Service) refreshRating(ctx context.Context, rec store.ShowRecord) error {
	if !s.ratings.Enabled() {
		return nil
	}
	score, ok, err := s.ratings.RottenTomatoes(ctx, rec)
	if err != nil {
		return WrapError(err, ErrNetwork, "rating lookup failed").WithContext("tmdb_id", rec.TMDBID)
	}
	if !ok {
		return nil
	}
	if err := s.store.SetRating(ctx, rec.TMDBID, score); err != nil {
		return WrapError(err, ErrStorage, "rating write failed").WithContext("tmdb_id", rec.TMDBID)
	}
	return nil
}

// RefreshAll refreshes every cached record with a bounded number of parallel
// workers, reporting how many succeeded and failed. Individual failures are
// logged and do not stop the batch.
func (s *Service) RefreshAll(ctx context.Context) (ok int, failed int, err error) {
	records, listErr := s.store.List(ctx)
	if listErr != nil {
		return 0, 0, WrapError(listErr, ErrStorage, "cache read failed")
	}

	workers := s.cfg.Refresh.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]error, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			results[i] = s.RefreshShow(gctx, rec.TMDBID)
			return nil
		})
	}
	_ = g.Wait()

	for i, refreshErr := range results {
		if refreshErr != nil {
			failed++
			log.Warn("refresh of %q failed: %v", records[i].Title, refreshErr)
		} else {
			ok++
		}
	}
	return ok, failed, nil
}

// SetLink attaches or clears the personal link of a cached record.
func (s *Service) SetLink(ctx context.Context, tmdbID int64, url string) error {
	return s.mutate(ctx, tmdbID, func() error {
		return s.store.SetPersonalLink(ctx, tmdbID, strings.TrimSpace(url))
	})
}

// SetCategory moves a cached record to another grouping label.
func (s *Service) SetCategory(ctx context.Context, tmdbID int64, label string) error {
	return s.mutate(ctx, tmdbID, func() error {
		return s.store.SetCategory(ctx, tmdbID, strings.TrimSpace(label))
	})
}

// Remove deletes a record from the cache.
func (s *Service) Remove(ctx context.Context, tmdbID int64) error {
	if err := s.store.Delete(ctx, tmdbID); err != nil {
		return WrapError(err, ErrStorage, "cache delete failed").WithContext("tmdb_id", tmdbID)
	}
	return nil
}

// List returns every cached record in page order.
func (s *Service) List(ctx context.Context) ([]store.ShowRecord, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "cache read failed")
	}
	return records, nil
}

// GeneratePage renders the offline page from the full cache contents.
func (s *Service) GeneratePage(ctx context.Context) error {
	records, err := s.store.List(ctx)
	if err != nil {
		return WrapError(err, ErrStorage, "cache read failed")
	}
	if err := s.gen.Generate(records, s.settings); err != nil {
		return WrapError(err, ErrRender, "page generation failed")
	}
	return nil
}

// Backup snapshots the cache database into the configured backup directory.
func (s *Service) Backup(ctx context.Context) (string, error) {
	dest, err := s.store.Backup(ctx, s.cfg.Storage.BackupDir)
	if err != nil {
		return "", WrapError(err, ErrStorage, "backup failed")
	}
	return dest, nil
}

func (s *Service) mutate(ctx context.Context, tmdbID int64, fn func() error) error {
	if err := fn(); err != nil {
		if errors.Is(err, store.ErrNotExist) {
			return NewError(ErrNotFound, "show is not cached").WithContext("tmdb_id", tmdbID)
		}
		return WrapError(err, ErrStorage, "cache write failed").WithContext("tmdb_id", tmdbID)
	}
	return nil
}

func (s *Service) mustGet(ctx context.Context, tmdbID int64) (store.ShowRecord, error) {
	rec, ok, err := s.store.Get(ctx, tmdbID)
	if err != nil {
		return store.ShowRecord{}, WrapError(err, ErrStorage, "cache read failed").WithContext("tmdb_id", tmdbID)
	}
	if !ok {
		return store.ShowRecord{}, NewError(ErrNotFound, "show is not cached").WithContext("tmdb_id", tmdbID)
	}
	return rec, nil
}

// recordOf converts a catalog detail into the cached record shape. The
// tvmaze cross-reference stays empty; no catalog call produces it yet.
func recordOf(detail catalog.Detail) store.ShowRecord {
	return store.ShowRecord{
		TMDBID:   detail.TMDBID,
		IMDBID:   detail.IMDBID,
		Title:    detail.Title,
		Year:     detail.Year,
		Kind:     detail.Kind,
		Overview: detail.Overview,
		Genres:   strings.Join(detail.Genres, ", "),
		Status:   detail.Status,
		Seasons:  detail.Seasons,
		Episodes: detail.Episodes,
	}
}
