// Package local answers collection jobs from a folder of tagged audio files.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.senan.xyz/taglib"

	"tomahawk/internal/entity"
	"tomahawk/internal/job"
	"tomahawk/internal/source"
	"tomahawk/pkg/utils"
)

// TagReader reads the tags of one audio file.
type TagReader func(path string) (map[string][]string, error)

// Folder is a job.Source backed by a music directory. The directory is
// scanned on first use and again on Rescan.
type Folder struct {
	name     string
	root     string
	readTags TagReader
	logger   *slog.Logger

	mu      sync.Mutex
	library *library
}

type track struct {
	title      string
	artist     string
	album      string
	albumPos   int
	discNumber int
	year       int
	size       int64
	path       string
}

type library struct {
	artists []string            // display names, sorted
	albums  map[string][]string // artist identity -> album names, sorted
	tracks  map[string][]track  // artist identity + album identity -> tracks
}

// New creates a Folder rooted at root, reading tags with taglib.
func New(name, root string, logger *slog.Logger) *Folder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Folder{
		name:     name,
		root:     root,
		readTags: taglib.ReadTags,
		logger:   logger,
	}
}

func (f *Folder) Name() string { return f.name }

// Run implements job.Source.
func (f *Folder) Run(ctx context.Context, method string, args job.Args) (job.Tree, error) {
	lib, err := f.load(ctx)
	if err != nil {
		return nil, err
	}

	switch method {
	case "artists":
		return job.Tree{"artists": toList(lib.artists)}, nil

	case "albums":
		artist := args.String("artist")
		return job.Tree{
			"artist": artist,
			"albums": toList(lib.albums[entity.Normalize(artist)]),
		}, nil

	case "tracks":
		artist, album := args.String("artist"), args.String("album")
		tracks := lib.tracks[albumKey(artist, album)]
		results := make([]any, 0, len(tracks))
		for _, t := range tracks {
			results = append(results, t.record())
		}
		return job.Tree{"artist": artist, "album": album, "results": results}, nil
	}

	return nil, fmt.Errorf("%w: %s", source.ErrUnknownMethod, method)
}

// Rescan rebuilds the index from disk.
func (f *Folder) Rescan(ctx context.Context) error {
	lib, err := f.scan(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.library = lib
	f.mu.Unlock()
	return nil
}

func (f *Folder) load(ctx context.Context) (*library, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.library != nil {
		return f.library, nil
	}
	lib, err := f.scan(ctx)
	if err != nil {
		return nil, err
	}
	f.library = lib
	return lib, nil
}

func (f *Folder) scan(ctx context.Context) (*library, error) {
	files, err := utils.FindAudioFiles(f.root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", f.root, err)
	}

	lib := &library{
		albums: make(map[string][]string),
		tracks: make(map[string][]track),
	}
	artistNames := make(map[string]string)
	albumNames := make(map[string]map[string]string)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tags, err := f.readTags(path)
		if err != nil {
			f.logger.Debug("skipping unreadable file", "path", path, "error", err)
			continue
		}

		t := trackFromTags(path, tags)
		owner := firstTag(tags, taglib.AlbumArtist)
		if owner == "" {
			owner = t.artist
		}
		if owner == "" || t.album == "" {
			f.logger.Debug("skipping file without artist or album", "path", path)
			continue
		}
		if info, err := os.Stat(path); err == nil {
			t.size = info.Size()
		}

		artistID := entity.Normalize(owner)
		if _, ok := artistNames[artistID]; !ok {
			artistNames[artistID] = owner
			albumNames[artistID] = make(map[string]string)
		}
		albumID := entity.Normalize(t.album)
		if _, ok := albumNames[artistID][albumID]; !ok {
			albumNames[artistID][albumID] = t.album
		}
		key := albumKey(owner, t.album)
		lib.tracks[key] = append(lib.tracks[key], t)
	}

	for artistID, name := range artistNames {
		lib.artists = append(lib.artists, name)
		for _, album := range albumNames[artistID] {
			lib.albums[artistID] = append(lib.albums[artistID], album)
		}
		sort.Strings(lib.albums[artistID])
	}
	sort.Strings(lib.artists)

	for key := range lib.tracks {
		tracks := lib.tracks[key]
		sort.SliceStable(tracks, func(i, j int) bool {
			if tracks[i].discNumber != tracks[j].discNumber {
				return tracks[i].discNumber < tracks[j].discNumber
			}
			return tracks[i].albumPos < tracks[j].albumPos
		})
	}

	f.logger.Info("scanned music folder", "root", f.root, "files", len(files), "artists", len(lib.artists))
	return lib, nil
}

func trackFromTags(path string, tags map[string][]string) track {
	title := firstTag(tags, taglib.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return track{
		title:      title,
		artist:     firstTag(tags, taglib.Artist),
		album:      firstTag(tags, taglib.Album),
		albumPos:   leadingInt(firstTag(tags, taglib.TrackNumber)),
		discNumber: leadingInt(firstTag(tags, taglib.DiscNumber)),
		year:       leadingInt(firstTag(tags, taglib.Date)),
		path:       path,
	}
}

func (t track) record() map[string]any {
	return map[string]any{
		"track":      t.title,
		"artist":     t.artist,
		"album":      t.album,
		"albumpos":   t.albumPos,
		"discnumber": t.discNumber,
		"year":       t.year,
		"size":       t.size,
		"mimetype":   utils.MimeType(t.path),
		"url":        utils.FileURL(t.path),
	}
}

func albumKey(artist, album string) string {
	return entity.Normalize(artist) + "\x00" + entity.Normalize(album)
}

// leadingInt parses "3", "3/12" and "1994-05-02" alike.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func toList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
