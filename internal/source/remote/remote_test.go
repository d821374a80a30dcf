package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomahawk/internal/job"
	"tomahawk/internal/source"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/albums", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "tomahawk/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		json.NewEncoder(w).Encode(map[string]any{
			"artist": args["artist"],
			"albums": []string{"Moon Safari", "Talkie Walkie"},
		})
	})
	mux.HandleFunc("/artists", func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Empty(t, args)
		w.Write([]byte(`{"artists":["Air"]}`))
	})
	mux.HandleFunc("/tracks", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resolver exploded", http.StatusInternalServerError)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["not","an","object"]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	srv := newTestServer(t)
	c := New(Options{Name: "remote", BaseURL: srv.URL + "/"})

	tree, err := c.Run(context.Background(), "albums", job.Args{"artist": "Air"})
	require.NoError(t, err)
	assert.Equal(t, "Air", tree["artist"])
	assert.Equal(t, []any{"Moon Safari", "Talkie Walkie"}, tree["albums"])

	tree, err = c.Run(context.Background(), "artists", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"Air"}, tree["artists"])
	assert.Equal(t, "remote", c.Name())
}

func TestRunErrors(t *testing.T) {
	srv := newTestServer(t)
	c := New(Options{Name: "remote", BaseURL: srv.URL})

	_, err := c.Run(context.Background(), "tracks", job.Args{"artist": "Air", "album": "Moon Safari"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "resolver exploded")

	_, err = c.Run(context.Background(), "search", nil)
	assert.ErrorIs(t, err, source.ErrUnknownMethod)

	_, err = c.Run(context.Background(), "broken", nil)
	assert.Error(t, err)
}

func TestRunRateLimited(t *testing.T) {
	srv := newTestServer(t)
	c := New(Options{Name: "remote", BaseURL: srv.URL, RequestsPerSecond: 1, Burst: 1})

	_, err := c.Run(context.Background(), "artists", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Run(ctx, "artists", nil)
	assert.Error(t, err, "second request must wait for a token beyond the deadline")
}

func TestRunServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{Name: "remote", BaseURL: url, Timeout: time.Second})
	_, err := c.Run(context.Background(), "artists", nil)
	assert.Error(t, err)
}
