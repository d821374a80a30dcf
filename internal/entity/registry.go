package entity

import (
	"strings"

	"tomahawk/pkg/utils"
)

// Registry interns Artist and Album handles. It is safe for concurrent use;
// concurrent lookups of the same identity always observe one handle.
type Registry struct {
	artists *utils.SyncMap[string, *Artist]
	albums  *utils.SyncMap[albumKey, *Album]
}

type albumKey struct {
	artist *Artist
	norm   string
}

func NewRegistry() *Registry {
	return &Registry{
		artists: utils.NewSyncMap[string, *Artist](),
		albums:  utils.NewSyncMap[albumKey, *Album](),
	}
}

// Artist returns the canonical artist for name, creating it on first use.
// Blank names return nil.
func (r *Registry) Artist(name string) *Artist {
	norm := Normalize(name)
	if norm == "" {
		return nil
	}
	a, _ := r.artists.LoadOrCreate(norm, func() *Artist {
		return &Artist{name: strings.TrimSpace(name), norm: norm}
	})
	return a
}

// Album returns the canonical album named name on artist, creating it on
// first use. Blank names or a nil artist return nil.
func (r *Registry) Album(name string, artist *Artist) *Album {
	norm := Normalize(name)
	if norm == "" || artist == nil {
		return nil
	}
	al, _ := r.albums.LoadOrCreate(albumKey{artist: artist, norm: norm}, func() *Album {
		return &Album{name: strings.TrimSpace(name), norm: norm, artist: artist}
	})
	return al
}

// LookupArtist returns an already interned artist without creating one.
func (r *Registry) LookupArtist(name string) (*Artist, bool) {
	return r.artists.Load(Normalize(name))
}

// LookupAlbum returns an already interned album without creating one.
func (r *Registry) LookupAlbum(name string, artist *Artist) (*Album, bool) {
	if artist == nil {
		return nil, false
	}
	return r.albums.Load(albumKey{artist: artist, norm: Normalize(name)})
}

// Stats reports how many artists and albums have been interned.
func (r *Registry) Stats() (artists, albums int) {
	return r.artists.Len(), r.albums.Len()
}
