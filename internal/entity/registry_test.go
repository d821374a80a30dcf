package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Portishead", "portishead"},
		{"  The   Beatles ", "the beatles"},
		{"Sigur\tRós", "sigur rós"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestRegistry_ArtistInterning(t *testing.T) {
	r := NewRegistry()

	a := r.Artist("Massive Attack")
	require.NotNil(t, a)
	assert.Same(t, a, r.Artist("massive  attack"))
	assert.Equal(t, "Massive Attack", r.Artist("MASSIVE ATTACK").Name(), "first spelling wins")
	assert.Equal(t, "artist:massive attack", a.CacheKey())

	assert.Nil(t, r.Artist("  "))
}

func TestRegistry_AlbumIdentityIncludesArtist(t *testing.T) {
	r := NewRegistry()
	a := r.Artist("Artist A")
	b := r.Artist("Artist B")

	greatest := r.Album("Greatest Hits", a)
	require.NotNil(t, greatest)
	assert.Same(t, greatest, r.Album("greatest hits", a))
	assert.NotSame(t, greatest, r.Album("Greatest Hits", b))
	assert.Same(t, a, greatest.Artist())
	assert.Equal(t, "album:artist a/greatest hits", greatest.CacheKey())

	assert.Nil(t, r.Album("x", nil))
	assert.Nil(t, r.Album("", a))
}

func TestAlbumCacheKey_SlashInNames(t *testing.T) {
	r := NewRegistry()

	x := r.Album("X", r.Artist("AC/DC"))
	dcx := r.Album("DC/X", r.Artist("AC"))
	require.NotNil(t, x)
	require.NotNil(t, dcx)

	assert.NotEqual(t, x.CacheKey(), dcx.CacheKey())
	assert.Equal(t, "album:ac%2Fdc/x", x.CacheKey())
	assert.Equal(t, "album:ac/dc%2Fx", dcx.CacheKey())

	pct := r.Album("100%2F", r.Artist("Pct"))
	slash := r.Album("100/", r.Artist("Pct"))
	assert.NotEqual(t, pct.CacheKey(), slash.CacheKey())
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	_, ok := r.LookupArtist("Nobody")
	assert.False(t, ok)

	a := r.Artist("Somebody")
	got, ok := r.LookupArtist("somebody")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.LookupAlbum("Nothing", a)
	assert.False(t, ok)
	al := r.Album("Something", a)
	gotAl, ok := r.LookupAlbum("SOMETHING", a)
	assert.True(t, ok)
	assert.Same(t, al, gotAl)

	artists, albums := r.Stats()
	assert.Equal(t, 1, artists)
	assert.Equal(t, 1, albums)
}

func TestRegistry_ConcurrentInterning(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	got := make([]*Album, 64)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Album("Mezzanine", r.Artist("Massive Attack"))
		}(i)
	}
	wg.Wait()

	for _, al := range got {
		assert.Same(t, got[0], al)
	}
}
