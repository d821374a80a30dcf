package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomahawk/internal/job"
	"tomahawk/internal/logger"
	"tomahawk/internal/store"
)

type mockSource struct {
	name  string
	tree  job.Tree
	err   error
	calls int
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Run(context.Context, string, job.Args) (job.Tree, error) {
	m.calls++
	return m.tree, m.err
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	failing := &mockSource{name: "failing", err: errors.New("connection refused")}
	empty := &mockSource{name: "empty", tree: job.Tree{}}
	good := &mockSource{name: "good", tree: job.Tree{"artists": []any{"Air"}}}
	never := &mockSource{name: "never", tree: job.Tree{"artists": []any{"Other"}}}

	chain := NewChain("chain", []job.Source{failing, empty, good, never}, logger.Discard())
	tree, err := chain.Run(context.Background(), "artists", nil)

	require.NoError(t, err)
	assert.Equal(t, []any{"Air"}, tree["artists"])
	assert.Equal(t, 0, never.calls)
	assert.Equal(t, "chain", chain.Name())
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain("chain", []job.Source{
		&mockSource{name: "a", err: errors.New("a down")},
		&mockSource{name: "b", err: errors.New("b down")},
	}, logger.Discard())

	_, err := chain.Run(context.Background(), "artists", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")
}

func TestChain_SomeEmpty(t *testing.T) {
	chain := NewChain("chain", []job.Source{
		&mockSource{name: "a", err: errors.New("a down")},
		&mockSource{name: "b", tree: job.Tree{}},
	}, logger.Discard())

	tree, err := chain.Run(context.Background(), "artists", nil)
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestChain_EmptyListFallsThrough(t *testing.T) {
	primary := &mockSource{name: "disk", tree: job.Tree{"artist": "Air", "albums": []any{}}}
	fallback := &mockSource{name: "mb", tree: job.Tree{"artist": "Air", "albums": []any{"Talkie Walkie"}}}
	chain := NewChain("chain", []job.Source{primary, fallback}, logger.Discard())

	tree, err := chain.Run(context.Background(), "albums", job.Args{"artist": "Air"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Talkie Walkie"}, tree["albums"])

	fallback.tree = job.Tree{"albums": []any{}}
	tree, err = chain.Run(context.Background(), "albums", job.Args{"artist": "Air"})
	require.NoError(t, err)
	assert.Equal(t, "Air", tree["artist"], "first empty answer is kept")
}

func TestCached_ServesStoredResponseOnFailure(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	src := &mockSource{name: "remote", tree: job.Tree{"artist": "Air", "albums": []any{"Moon Safari"}}}
	cached := NewCached(src, st, logger.Discard())
	args := job.Args{"artist": "Air"}

	tree, err := cached.Run(context.Background(), "albums", args)
	require.NoError(t, err)
	assert.Equal(t, "Air", tree["artist"])

	src.tree, src.err = nil, errors.New("offline")
	tree, err = cached.Run(context.Background(), "albums", job.Args{"artist": "AIR"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Moon Safari"}, tree["albums"])

	_, err = cached.Run(context.Background(), "tracks", args)
	assert.Error(t, err, "nothing stored for tracks")
}

func TestCached_DoesNotMaskUnknownMethod(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	src := &mockSource{name: "remote", tree: job.Tree{}}
	cached := NewCached(src, st, logger.Discard())

	_, err = cached.Run(context.Background(), "search", nil)
	require.NoError(t, err)

	src.err = ErrUnknownMethod
	_, err = cached.Run(context.Background(), "search", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestResponseKey(t *testing.T) {
	a := ResponseKey("local", "tracks", job.Args{"artist": "Air", "album": "Moon Safari"})
	b := ResponseKey("local", "tracks", job.Args{"album": "moon safari", "artist": "AIR"})
	assert.Equal(t, a, b)
	assert.Equal(t, "local/tracks?album=moon+safari&artist=air", a)
	assert.Equal(t, "local/artists", ResponseKey("local", "artists", nil))
}
