// Package collection caches what a resolver knows about artists, albums
// and tracks. Reads never block: a miss starts a fetch job and returns
// nothing, and a notification announces when a re-read will find data.
package collection

import (
	"errors"
	"log/slog"

	"tomahawk/internal/entity"
	"tomahawk/internal/job"
	"tomahawk/internal/notify"
	"tomahawk/internal/resolver"
	"tomahawk/pkg/utils"
)

// Job methods a collection dispatches.
const (
	MethodArtists = "artists"
	MethodAlbums  = "albums"
	MethodTracks  = "tracks"
)

// DefaultQueryPriority is the priority tracks are indexed at.
const DefaultQueryPriority = 0

const artistsKey = "artists"

// Options configures a Collection.
type Options struct {
	ID         string
	Name       string
	IconPath   string
	OnlyLocal  bool
	Registry   *entity.Registry
	Queries    *resolver.Index
	Dispatcher job.Dispatcher
	Publisher  notify.Publisher
	Logger     *slog.Logger
}

// Collection is the lazily populated view of one resolver's catalogue.
type Collection struct {
	id        string
	name      string
	iconPath  string
	onlyLocal bool

	registry   *entity.Registry
	index      *resolver.Index
	dispatcher job.Dispatcher
	publisher  notify.Publisher
	logger     *slog.Logger

	store   *Store
	pending *utils.SyncMap[string, struct{}]
}

// New creates a collection and immediately starts the artist fetch.
func New(opts Options) (*Collection, error) {
	if opts.ID == "" {
		return nil, errors.New("collection id cannot be empty")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("collection needs a dispatcher")
	}
	if opts.Registry == nil {
		opts.Registry = entity.NewRegistry()
	}
	if opts.Queries == nil {
		opts.Queries = resolver.NewIndex()
	}
	if opts.Publisher == nil {
		opts.Publisher = discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = opts.ID
	}

	c := &Collection{
		id:         opts.ID,
		name:       opts.Name,
		iconPath:   opts.IconPath,
		onlyLocal:  opts.OnlyLocal,
		registry:   opts.Registry,
		index:      opts.Queries,
		dispatcher: opts.Dispatcher,
		publisher:  opts.Publisher,
		logger:     opts.Logger.With("collection", opts.ID),
		store:      NewStore(),
		pending:    utils.NewSyncMap[string, struct{}](),
	}
	c.fetchArtists()
	return c, nil
}

type discard struct{}

func (discard) Publish(notify.Event) {}

func (c *Collection) ID() string       { return c.id }
func (c *Collection) Name() string     { return c.name }
func (c *Collection) IconPath() string { return c.iconPath }
func (c *Collection) IsLocal() bool    { return c.onlyLocal }
func (c *Collection) Stats() Stats     { return c.store.Stats() }

// Registry returns the identity registry artist and album handles come from.
func (c *Collection) Registry() *entity.Registry { return c.registry }

// Pending reports whether a fetch for key is in flight.
func (c *Collection) Pending(key string) bool {
	_, ok := c.pending.Load(key)
	return ok
}

// ArtistsPending reports whether the artist list fetch is in flight.
func (c *Collection) ArtistsPending() bool { return c.Pending(artistsKey) }

// Artists returns the artists learned so far.
func (c *Collection) Artists(sorted bool) []*entity.Artist {
	return c.store.Artists(sorted)
}

// Albums returns every album merged from this collection's album lists.
func (c *Collection) Albums(sorted bool) []*entity.Album {
	return c.store.Albums(sorted)
}

// LookupArtist finds an artist this collection has reported. It never
// interns a new handle.
func (c *Collection) LookupArtist(name string) (*entity.Artist, bool) {
	a, ok := c.registry.LookupArtist(name)
	if !ok || !c.store.HasArtist(a) {
		return nil, false
	}
	return a, true
}

// LookupAlbum finds an album of artist that came from one of this
// collection's merged album lists. It never interns a new handle.
func (c *Collection) LookupAlbum(name string, artist *entity.Artist) (*entity.Album, bool) {
	al, ok := c.registry.LookupAlbum(name, artist)
	if !ok || !c.store.HasAlbum(al) {
		return nil, false
	}
	return al, true
}

// Refresh asks the resolver for its artist list again. Newly reported
// artists are added; nothing is removed.
func (c *Collection) Refresh() {
	c.fetchArtists()
}

// Queries returns every track query this collection has indexed.
func (c *Collection) Queries() []*resolver.Query {
	return c.store.Queries()
}

// GetArtistAlbums returns the cached albums of artist. On a miss it starts
// a fetch and returns nothing; a notification keyed by the artist follows
// once the albums are merged.
func (c *Collection) GetArtistAlbums(artist *entity.Artist, sorted bool) []*entity.Album {
	if artist == nil {
		return nil
	}
	if albums, ok := c.store.ArtistAlbums(artist, sorted); ok {
		return albums
	}

	hit := func() bool {
		_, ok := c.store.ArtistAlbums(artist, false)
		return ok
	}
	c.fetch(artist.CacheKey(), MethodAlbums, job.Args{"artist": artist.Name()}, hit, func(tree job.Tree) {
		c.mergeAlbums(artist, tree)
	})
	return nil
}

// GetAlbumTracks returns the cached track queries of album. On a miss it
// starts a fetch and returns nothing; a notification keyed by the album
// follows once the tracks are merged.
func (c *Collection) GetAlbumTracks(album *entity.Album, sorted bool) []*resolver.Query {
	if album == nil {
		return nil
	}
	if tracks, ok := c.store.AlbumTracks(album, sorted); ok {
		return tracks
	}

	args := job.Args{"artist": album.Artist().Name(), "album": album.Name()}
	hit := func() bool {
		_, ok := c.store.AlbumTracks(album, false)
		return ok
	}
	c.fetch(album.CacheKey(), MethodTracks, args, hit, func(tree job.Tree) {
		c.mergeTracks(album, tree)
	})
	return nil
}

func (c *Collection) fetchArtists() {
	c.fetch(artistsKey, MethodArtists, nil, nil, c.mergeArtists)
}

// fetch dispatches method unless a fetch for key is already in flight.
// The key stays pending until the job completes and its merge has run, so
// a reader that wins the pending slot after a merge sees the commit in hit.
func (c *Collection) fetch(key, method string, args job.Args, hit func() bool, merge func(job.Tree)) {
	if _, loaded := c.pending.LoadOrStore(key, struct{}{}); loaded {
		c.logger.Debug("fetch already in flight", "key", key)
		return
	}
	if hit != nil && hit() {
		c.pending.Delete(key)
		return
	}

	task := c.dispatcher.Start(c.id, method, args)
	if task == nil {
		c.pending.Delete(key)
		c.logger.Error("dispatcher returned no task", "method", method, "key", key)
		return
	}

	task.Then(func(tree job.Tree, err error) {
		defer c.pending.Delete(key)
		if err != nil {
			c.logger.Warn("fetch failed", "method", method, "key", key, "job", task.ID(), "error", err)
			return
		}
		if tree == nil {
			c.logger.Debug("fetch returned no data", "method", method, "key", key)
			return
		}
		merge(tree)
	})
}

func (c *Collection) mergeArtists(tree job.Tree) {
	names, ok := c.stringList(tree, "artists", artistsKey)
	if !ok || len(names) == 0 {
		return
	}

	artists := make([]*entity.Artist, 0, len(names))
	for _, name := range names {
		if a := c.registry.Artist(name); a != nil {
			artists = append(artists, a)
		}
	}

	added := c.store.AddArtists(artists)
	if len(added) == 0 {
		return
	}

	keys := make([]string, len(added))
	for i, a := range added {
		keys[i] = a.CacheKey()
	}
	c.logger.Debug("merged artists", "added", len(added))
	c.publisher.Publish(notify.NewEvent(c.id, keys...))
}

func (c *Collection) mergeAlbums(artist *entity.Artist, tree job.Tree) {
	if !c.matches(tree, "artist", artist.Name(), artist.CacheKey()) {
		return
	}

	names, ok := c.stringList(tree, "albums", artist.CacheKey())
	if !ok {
		return
	}

	albums := make([]*entity.Album, 0, len(names))
	for _, name := range names {
		if al := c.registry.Album(name, artist); al != nil {
			albums = append(albums, al)
		}
	}

	added := c.store.AddArtistAlbums(artist, albums)
	c.logger.Debug("merged albums", "artist", artist.Name(), "received", len(albums), "added", added)
	c.publisher.Publish(notify.NewEvent(c.id, artist.CacheKey()))
}

func (c *Collection) mergeTracks(album *entity.Album, tree job.Tree) {
	if !c.matches(tree, "artist", album.Artist().Name(), album.CacheKey()) ||
		!c.matches(tree, "album", album.Name(), album.CacheKey()) {
		return
	}

	node, ok := tree["results"]
	if !ok || node == nil {
		return
	}
	if _, isList := node.([]any); !isList {
		c.logger.Debug("results is not a list, ignoring", "key", album.CacheKey())
		return
	}
	results, err := resolver.ParseResultList(c.id, node)
	if err != nil {
		c.logger.Error("failed to decode track results", "key", album.CacheKey(), "error", err)
		return
	}

	tracks := make([]*resolver.Query, 0, len(results))
	seen := make(map[*resolver.Query]struct{}, len(results))
	for _, r := range results {
		q := c.index.Get(r, c.onlyLocal)
		q.AddTrackResult(r, q.HowSimilar(r))
		c.store.AddQuery(q, DefaultQueryPriority)
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		tracks = append(tracks, q)
	}

	c.store.SetAlbumTracks(album, tracks)
	c.logger.Debug("merged tracks", "album", album.String(), "tracks", len(tracks))
	c.publisher.Publish(notify.NewEvent(c.id, album.CacheKey()))
}

// stringList reads a list-of-names field. It reports false when the field
// carries nothing usable; only a list holding non-strings is an error.
func (c *Collection) stringList(tree job.Tree, field, key string) ([]string, bool) {
	values, present, err := resolver.StringList(tree, field)
	switch {
	case err != nil && present:
		c.logger.Error("failed to decode response", "field", field, "key", key, "error", err)
		return nil, false
	case err != nil:
		c.logger.Debug("ignoring response field", "field", field, "key", key, "error", err)
		return nil, false
	case !present:
		return nil, false
	}
	return values, true
}

// matches checks that a response names the entity that was requested.
// A missing name is taken to mean the requested one.
func (c *Collection) matches(tree job.Tree, field, want, key string) bool {
	got, ok := resolver.TextField(tree, field)
	if !ok || entity.SameName(got, want) {
		return true
	}
	c.logger.Warn("response names a different entity, discarding",
		"field", field, "requested", want, "received", got, "key", key)
	return false
}
