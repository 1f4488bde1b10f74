package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/showshelf/showshelf/internal/catalog"
	"github.com/showshelf/showshelf/internal/config"
	"github.com/showshelf/showshelf/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	candidates []catalog.Candidate
	details    map[int64]catalog.Detail
	posterData string

	searchErr error
	detailErr map[int64]error
	posterErr error

	searchCalls int
	detailCalls int
	posterCalls int
}

func (f *fakeCatalog) Search(ctx context.Context, kind store.MediaKind, title string, yearHint int) ([]catalog.Candidate, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

func (f *fakeCatalog) Details(ctx context.Context, kind store.MediaKind, tmdbID int64) (catalog.Detail, error) {
	f.detailCalls++
	if err := f.detailErr[tmdbID]; err != nil {
		return catalog.Detail{}, err
	}
	detail, ok := f.details[tmdbID]
	if !ok {
		return catalog.Detail{}, fmt.Errorf("no detail for %d", tmdbID)
	}
	return detail, nil
}

func (f *fakeCatalog) ResolveIMDB(ctx context.Context, text string) (store.MediaKind, int64, bool, error) {
	return store.MediaTV, 0, false, nil
}

func (f *fakeCatalog) PosterDataURI(ctx context.Context, posterPath string) (string, error) {
	f.posterCalls++
	if f.posterErr != nil {
		return "", f.posterErr
	}
	return f.posterData, nil
}

type fakeRatings struct {
	score   string
	enabled bool
	calls   int
}

func (f *fakeRatings) Enabled() bool { return f.enabled }

func (f *fakeRatings) RottenTomatoes(ctx context.Context, rec store.ShowRecord) (string, bool, error) {
	f.calls++
	if f.score == "" {
		return "", false, nil
	}
	return f.score, true, nil
}

type fakeGenerator struct {
	records  []store.ShowRecord
	settings config.Settings
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(records []store.ShowRecord, settings config.Settings) error {
	f.calls++
	f.records = records
	f.settings = settings
	return f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{DataDir: dir, BackupDir: filepath.Join(dir, "backups")},
		Refresh: config.RefreshConfig{Workers: 2},
	}
}

func newTestService(t *testing.T, cat *fakeCatalog, rat *fakeRatings, gen *fakeGenerator) (*Service, *store.SQLiteStore) {
	t.Helper()
	cfg := testConfig(t)
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(cfg, config.DefaultSettings(), cat, rat, st, gen), st
}

func severanceDetail() catalog.Detail {
	return catalog.Detail{
		TMDBID:     95396,
		IMDBID:     "tt11280740",
		Title:      "Severance",
		Year:       2022,
		Kind:       store.MediaTV,
		Overview:   "An office.",
		Genres:     []string{"Drama", "Mystery"},
		Status:     "Returning Series",
		Seasons:    2,
		Episodes:   19,
		PosterPath: "/sev.jpg",
	}
}

func TestAddShow_CachesDetailPosterAndRating(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		details:    map[int64]catalog.Detail{95396: severanceDetail()},
		posterData: "data:image/jpeg;base64,AAAA",
	}
	rat := &fakeRatings{enabled: true, score: "97%"}
	svc, _ := newTestService(t, cat, rat, &fakeGenerator{})

	rec, err := svc.AddShow(context.Background(), store.MediaTV, 95396, "Drama")
	require.NoError(t, err)

	assert.Equal(t, int64(95396), rec.TMDBID)
	assert.Equal(t, "tt11280740", rec.IMDBID)
	assert.Equal(t, "Drama, Mystery", rec.Genres)
	assert.Equal(t, "Drama", rec.Category)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", rec.PosterData)
	assert.Equal(t, "97%", rec.RTScore)
	assert.Equal(t, 1, cat.posterCalls)
}

func TestAddShow_SurvivesPosterFailure(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		details:   map[int64]catalog.Detail{95396: severanceDetail()},
		posterErr: fmt.Errorf("connection reset"),
	}
	svc, _ := newTestService(t, cat, &fakeRatings{}, &fakeGenerator{})

	rec, err := svc.AddShow(context.Background(), store.MediaTV, 95396, "")
	require.NoError(t, err)
	assert.False(t, rec.HasPoster())
}

func TestEnsurePoster_FetchesAtMostOnce(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		details:    map[int64]catalog.Detail{95396: severanceDetail()},
		posterData: "data:image/jpeg;base64,AAAA",
	}
	svc, st := newTestService(t, cat, &fakeRatings{}, &fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 95396, Title: "Severance", Kind: store.MediaTV}))

	fetched, err := svc.EnsurePoster(ctx, 95396)
	require.NoError(t, err)
	assert.True(t, fetched)

	got, ok, err := st.Get(ctx, 95396)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", got.PosterData)

	detailCalls, posterCalls := cat.detailCalls, cat.posterCalls

	// Second call sees the stored poster and never touches the network.
	fetched, err = svc.EnsurePoster(ctx, 95396)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Equal(t, detailCalls, cat.detailCalls)
	assert.Equal(t, posterCalls, cat.posterCalls)

	// Poster bytes are unchanged.
	again, _, err := st.Get(ctx, 95396)
	require.NoError(t, err)
	assert.Equal(t, got.PosterData, again.PosterData)
}

func TestEnsurePoster_UncachedShow(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeCatalog{}, &fakeRatings{}, &fakeGenerator{})

	_, err := svc.EnsurePoster(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrNotFound))
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeCatalog{}, &fakeRatings{}, &fakeGenerator{})

	candidates, err := svc.Search(context.Background(), store.MediaTV, "unknown title", 0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearch_NetworkErrorIsRetryable(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{searchErr: fmt.Errorf("dial tcp: timeout")}
	svc, _ := newTestService(t, cat, &fakeRatings{}, &fakeGenerator{})

	_, err := svc.Search(context.Background(), store.MediaTV, "anything", 0)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrNetwork))

	var shelfErr *ShelfError
	require.ErrorAs(t, err, &shelfErr)
	assert.True(t, shelfErr.Type.Retryable())
}

func TestSetLinkAndCategory(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t, &fakeCatalog{}, &fakeRatings{}, &fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 1, Title: "A", Kind: store.MediaTV}))

	require.NoError(t, svc.SetLink(ctx, 1, " https://example.net/watch "))
	require.NoError(t, svc.SetCategory(ctx, 1, "Kids"))

	rec, _, err := st.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.net/watch", rec.PersonalLink)
	assert.Equal(t, "Kids", rec.Category)

	err = svc.SetLink(ctx, 999, "https://example.net")
	assert.True(t, IsErrorType(err, ErrNotFound))
}

func TestRefreshShow_ReplacesMetadataAndPoster(t *testing.T) {
	t.Parallel()

	detail := severanceDetail()
	cat := &fakeCatalog{
		details:    map[int64]catalog.Detail{95396: detail},
		posterData: "data:image/jpeg;base64,TkVX",
	}
	svc, st := newTestService(t, cat, &fakeRatings{}, &fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, store.ShowRecord{
		TMDBID: 95396, Title: "Old Title", Kind: store.MediaTV,
	}))
	require.NoError(t, st.SetPoster(ctx, 95396, "data:image/jpeg;base64,T0xE"))

	require.NoError(t, svc.RefreshShow(ctx, 95396))

	rec, _, err := st.Get(ctx, 95396)
	require.NoError(t, err)
	assert.Equal(t, "Severance", rec.Title)
	assert.Equal(t, "data:image/jpeg;base64,TkVX", rec.PosterData)
}

func TestRefreshAll_CountsFailures(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		details: map[int64]catalog.Detail{
			1: {TMDBID: 1, Title: "A", Kind: store.MediaTV},
			2: {TMDBID: 2, Title: "B", Kind: store.MediaMovie},
		},
		detailErr: map[int64]error{2: fmt.Errorf("boom")},
	}
	svc, st := newTestService(t, cat, &fakeRatings{}, &fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 1, Title: "A", Kind: store.MediaTV}))
	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 2, Title: "B", Kind: store.MediaMovie}))

	ok, failed, err := svc.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestGeneratePage(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc, st := newTestService(t, &fakeCatalog{}, &fakeRatings{}, gen)
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 1, Title: "A", Kind: store.MediaTV, Category: "Kids"}))
	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 2, Title: "B", Kind: store.MediaTV, Category: "Drama"}))

	require.NoError(t, svc.GeneratePage(ctx))
	assert.Equal(t, 1, gen.calls)
	assert.Len(t, gen.records, 2)
}

func TestGeneratePage_RenderErrorType(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: fmt.Errorf("template gone")}
	svc, _ := newTestService(t, &fakeCatalog{}, &fakeRatings{}, gen)

	err := svc.GeneratePage(context.Background())
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrRender))
}

func TestBackup(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t, &fakeCatalog{}, &fakeRatings{}, &fakeGenerator{})
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, store.ShowRecord{TMDBID: 1, Title: "A", Kind: store.MediaTV}))

	dest, err := svc.Backup(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, dest)
}
