package catalog

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/showshelf/showshelf/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickPosterSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sizes []string
		want  string
	}{
		{name: "prefers w500", sizes: []string{"w92", "w500", "w780", "original"}, want: "w500"},
		{name: "falls back to w780", sizes: []string{"w92", "w780", "original"}, want: "w780"},
		{name: "largest otherwise", sizes: []string{"w92", "w154"}, want: "w154"},
		{name: "empty list", sizes: nil, want: "original"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickPosterSize(tt.sizes))
		})
	}
}

func TestPosterDataURI_UsesDiscoveredImageConfig(t *testing.T) {
	t.Parallel()

	posterBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	var configCalls, imageCalls int

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/configuration", func(w http.ResponseWriter, r *http.Request) {
		configCalls++
		w.Write([]byte(`{"images":{"secure_base_url":"` + server.URL + `/","poster_sizes":["w92","w500","original"]}}`))
	})
	mux.HandleFunc("/w500/sev.jpg", func(w http.ResponseWriter, r *http.Request) {
		imageCalls++
		w.Write(posterBytes)
	})

	client, err := NewClient(config.CatalogConfig{APIKey: "test-key", APIURL: server.URL})
	require.NoError(t, err)

	uri, err := client.PosterDataURI(context.Background(), "/sev.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	assert.Equal(t, posterBytes, decoded)

	// Second poster reuses the cached image configuration.
	_, err = client.PosterDataURI(context.Background(), "/sev.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, configCalls)
	assert.Equal(t, 2, imageCalls)
}

func TestPosterDataURI_EmptyPath(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.NewServeMux())
	uri, err := client.PosterDataURI(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, uri)
}

func TestPosterDataURI_PNGMime(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	mux.HandleFunc("/w500/sev.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 0x50, 0x4E, 0x47})
	})

	client, err := NewClient(config.CatalogConfig{APIKey: "test-key", APIURL: server.URL})
	require.NoError(t, err)
	client.SetImageBase(server.URL+"/", "w500")

	uri, err := client.PosterDataURI(context.Background(), "/sev.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
}

func TestPosterDataURI_DownloadFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	mux.HandleFunc("/w500/gone.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	client, err := NewClient(config.CatalogConfig{APIKey: "test-key", APIURL: server.URL})
	require.NoError(t, err)
	client.SetImageBase(server.URL+"/", "w500")

	_, err = client.PosterDataURI(context.Background(), "/gone.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
