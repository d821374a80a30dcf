package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomahawk/internal/config"
	"tomahawk/internal/logger"
)

func resolverServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		_ = json.NewDecoder(r.Body).Decode(&args)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/artists":
			_, _ = w.Write([]byte(`{"artists":["Boards of Canada","Autechre"]}`))
		case "/albums":
			_ = json.NewEncoder(w).Encode(map[string]any{"artist": args["artist"], "albums": []string{"Geogaddi"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, url string) config.Config {
	cfg := config.DefaultConfig()
	cfg.CacheDir = ""
	cfg.JobTimeout = 2 * time.Second
	cfg.Collections = []config.CollectionConfig{
		{ID: "disk", Source: config.SourceLocal, Path: t.TempDir(), OnlyLocal: true},
		{ID: "web", Name: "Web", Source: config.SourceRemote, URL: url},
	}
	return cfg
}

func TestNewSyncWiresCollections(t *testing.T) {
	srv := resolverServer(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), logger.Discard(), Options{Sync: true})
	require.NoError(t, err)
	defer a.Close()

	all := a.Collections.All()
	require.Len(t, all, 2)
	assert.Equal(t, "disk", all[0].ID())
	assert.True(t, all[0].IsLocal())
	assert.Empty(t, all[0].Artists(false))

	web, ok := a.Collections.Get("web")
	require.True(t, ok)
	assert.Equal(t, "Web", web.Name())
	require.Len(t, web.Artists(true), 2)
	assert.Equal(t, "Autechre", web.Artists(true)[0].Name())

	boc := a.Registry.Artist("boards of canada")
	assert.Nil(t, web.GetArtistAlbums(boc, false))
	albums := web.GetArtistAlbums(boc, false)
	require.Len(t, albums, 1)
	assert.Equal(t, "Geogaddi", albums[0].Name())
}

func TestNewPooledNotifies(t *testing.T) {
	srv := resolverServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, testConfig(t, srv.URL), logger.Discard(), Options{Only: []string{"web"}})
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Collections.All(), 1)
	web, _ := a.Collections.Get("web")

	require.Eventually(t, func() bool { return len(web.Artists(false)) == 2 }, 2*time.Second, 10*time.Millisecond)

	sub := a.Bus.Subscribe()
	autechre := a.Registry.Artist("Autechre")
	assert.Nil(t, web.GetArtistAlbums(autechre, false))

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "web", ev.Collection)
		assert.True(t, ev.Has(autechre.CacheKey()))
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	assert.Len(t, web.GetArtistAlbums(autechre, false), 1)
	assert.NotEmpty(t, a.Jobs.List())
}

func TestNewRejectsEmptySelection(t *testing.T) {
	srv := resolverServer(t)
	_, err := New(context.Background(), testConfig(t, srv.URL), logger.Discard(), Options{Only: []string{"missing"}})
	assert.Error(t, err)
}

func TestNewFallbackChain(t *testing.T) {
	srv := resolverServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Collections = cfg.Collections[:1]
	cfg.Collections[0].Fallbacks = []string{srv.URL}

	a, err := New(context.Background(), cfg, logger.Discard(), Options{Sync: true})
	require.NoError(t, err)
	defer a.Close()

	disk, ok := a.Collections.Get("disk")
	require.True(t, ok)
	// The empty folder knows no artists, so the fallback's list is used.
	require.Len(t, disk.Artists(false), 2)

	autechre := a.Registry.Artist("Autechre")
	disk.GetArtistAlbums(autechre, false)
	albums := disk.GetArtistAlbums(autechre, false)
	require.Len(t, albums, 1)
	assert.Equal(t, "Geogaddi", albums[0].Name())
}
