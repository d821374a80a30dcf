// Package entity interns the canonical Artist and Album handles shared by
// every collection in the process.
package entity

import (
	"strings"
	"unicode"
)

// Artist is a canonical artist handle. Two lookups of names that normalize
// to the same identity return the same *Artist.
type Artist struct {
	name string
	norm string
}

// Name returns the spelling the artist was first interned with.
func (a *Artist) Name() string { return a.name }

// CacheKey is a stable string identity usable as a notification key.
func (a *Artist) CacheKey() string { return "artist:" + a.norm }

func (a *Artist) String() string { return a.name }

// Album is a canonical album handle owned by exactly one Artist.
type Album struct {
	name   string
	norm   string
	artist *Artist
}

func (a *Album) Name() string    { return a.name }
func (a *Album) Artist() *Artist { return a.artist }

// CacheKey is a stable string identity usable as a notification key. Both
// name parts are escaped so that "/" inside a name cannot shift the split.
func (a *Album) CacheKey() string {
	return "album:" + keyEscaper.Replace(a.artist.norm) + "/" + keyEscaper.Replace(a.norm)
}

var keyEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

func (a *Album) String() string { return a.artist.name + " - " + a.name }

// Normalize folds a name to its identity form: trimmed, lowercased, with
// internal whitespace runs collapsed to a single space.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// SameName reports whether two names share an identity.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
