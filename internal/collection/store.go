package collection

import (
	"sort"
	"strings"
	"sync"

	"tomahawk/internal/entity"
	"tomahawk/internal/resolver"
)

// Store holds what a collection has learned. Entries are only ever added
// or replaced; nothing is evicted.
type Store struct {
	mu sync.RWMutex

	artists   []*entity.Artist
	artistSet map[*entity.Artist]struct{}

	albums         *albumSet
	albumsByArtist map[*entity.Artist]*albumSet
	tracksByAlbum  map[*entity.Album][]*resolver.Query

	queries    []*resolver.Query
	priorities map[*resolver.Query]int
}

// albumSet keeps insertion order and rejects duplicates.
type albumSet struct {
	order []*entity.Album
	seen  map[*entity.Album]struct{}
}

func newAlbumSet() *albumSet {
	return &albumSet{seen: make(map[*entity.Album]struct{})}
}

func (s *albumSet) add(al *entity.Album) bool {
	if _, dup := s.seen[al]; dup {
		return false
	}
	s.seen[al] = struct{}{}
	s.order = append(s.order, al)
	return true
}

func (s *albumSet) sorted(byName bool) []*entity.Album {
	out := make([]*entity.Album, len(s.order))
	copy(out, s.order)
	if byName {
		sortAlbums(out)
	}
	return out
}

// Stats summarizes a store.
type Stats struct {
	Artists    int `json:"artists"`
	Albums     int `json:"albums"`
	AlbumLists int `json:"albumLists"`
	TrackLists int `json:"trackLists"`
	Queries    int `json:"queries"`
}

func NewStore() *Store {
	return &Store{
		artistSet:      make(map[*entity.Artist]struct{}),
		albums:         newAlbumSet(),
		albumsByArtist: make(map[*entity.Artist]*albumSet),
		tracksByAlbum:  make(map[*entity.Album][]*resolver.Query),
		priorities:     make(map[*resolver.Query]int),
	}
}

// AddArtists registers artists and returns the ones not known before.
func (s *Store) AddArtists(artists []*entity.Artist) []*entity.Artist {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []*entity.Artist
	for _, a := range artists {
		if _, ok := s.artistSet[a]; ok {
			continue
		}
		s.artistSet[a] = struct{}{}
		s.artists = append(s.artists, a)
		added = append(added, a)
	}
	return added
}

// Artists returns the known artists in discovery order, or by name when sorted.
func (s *Store) Artists(sorted bool) []*entity.Artist {
	s.mu.RLock()
	out := make([]*entity.Artist, len(s.artists))
	copy(out, s.artists)
	s.mu.RUnlock()

	if sorted {
		sort.SliceStable(out, func(i, j int) bool {
			return lessName(out[i].Name(), out[j].Name())
		})
	}
	return out
}

// HasArtist reports whether a was reported by an artist fetch.
func (s *Store) HasArtist(a *entity.Artist) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artistSet[a]
	return ok
}

// ArtistAlbums returns the albums registered for a, and whether an album
// fetch for a has ever been committed.
func (s *Store) ArtistAlbums(a *entity.Artist, sorted bool) ([]*entity.Album, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.albumsByArtist[a]
	if !ok {
		return nil, false
	}
	return set.sorted(sorted), true
}

// Albums returns every album merged from any artist's album list, in
// discovery order or by name when sorted.
func (s *Store) Albums(sorted bool) []*entity.Album {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.albums.sorted(sorted)
}

// HasAlbum reports whether al came from a merged album list.
func (s *Store) HasAlbum(al *entity.Album) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.albums.seen[al]
	return ok
}

// AddArtistAlbums marks a's album list present and appends the albums not
// already in it. Every album also joins the store-wide album list. It
// returns how many were new to a.
func (s *Store) AddArtistAlbums(a *entity.Artist, albums []*entity.Album) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.albumsByArtist[a]
	if !ok {
		set = newAlbumSet()
		s.albumsByArtist[a] = set
	}

	added := 0
	for _, al := range albums {
		s.albums.add(al)
		if set.add(al) {
			added++
		}
	}
	return added
}

// AlbumTracks returns the track queries committed for al, and whether a
// track fetch for al has ever been committed.
func (s *Store) AlbumTracks(al *entity.Album, sorted bool) ([]*resolver.Query, bool) {
	s.mu.RLock()
	tracks, ok := s.tracksByAlbum[al]
	out := make([]*resolver.Query, len(tracks))
	copy(out, tracks)
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if sorted {
		sortTracks(out)
	}
	return out, true
}

// SetAlbumTracks replaces the track sequence for al. An empty sequence is
// still a committed, present entry.
func (s *Store) SetAlbumTracks(al *entity.Album, tracks []*resolver.Query) {
	seq := make([]*resolver.Query, len(tracks))
	copy(seq, tracks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracksByAlbum[al] = seq
}

// AddQuery indexes q at priority. Re-adding keeps the higher priority.
func (s *Store) AddQuery(q *resolver.Query, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.priorities[q]
	if !ok {
		s.queries = append(s.queries, q)
		s.priorities[q] = priority
		return
	}
	if priority > old {
		s.priorities[q] = priority
	}
}

// Queries returns every indexed query, highest priority first.
func (s *Store) Queries() []*resolver.Query {
	s.mu.RLock()
	out := make([]*resolver.Query, len(s.queries))
	copy(out, s.queries)
	prio := make(map[*resolver.Query]int, len(s.priorities))
	for q, p := range s.priorities {
		prio[q] = p
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return prio[out[i]] > prio[out[j]]
	})
	return out
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Artists:    len(s.artists),
		Albums:     len(s.albums.order),
		AlbumLists: len(s.albumsByArtist),
		TrackLists: len(s.tracksByAlbum),
		Queries:    len(s.queries),
	}
}

func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func sortAlbums(albums []*entity.Album) {
	sort.SliceStable(albums, func(i, j int) bool {
		return lessName(albums[i].Name(), albums[j].Name())
	})
}

// sortTracks orders by disc, then album position, then title. Positions
// come from each query's best result. A missing disc number means disc 1;
// queries without results sort last.
func sortTracks(tracks []*resolver.Query) {
	type pos struct{ disc, track int }
	positions := make(map[*resolver.Query]pos, len(tracks))
	for _, q := range tracks {
		p := pos{disc: 1 << 30, track: 1 << 30}
		if best, ok := q.BestResult(); ok {
			p.disc = max(best.Result.DiscNumber, 1)
			if best.Result.AlbumPos > 0 {
				p.track = best.Result.AlbumPos
			}
		}
		positions[q] = p
	}

	sort.SliceStable(tracks, func(i, j int) bool {
		pi, pj := positions[tracks[i]], positions[tracks[j]]
		if pi.disc != pj.disc {
			return pi.disc < pj.disc
		}
		if pi.track != pj.track {
			return pi.track < pj.track
		}
		return lessName(tracks[i].Title(), tracks[j].Title())
	})
}
