// Package musicbrainz answers album and track jobs from the MusicBrainz web
// service. It cannot enumerate artists, so it is used behind another source
// in a source.Chain.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tomahawk/internal/entity"
	"tomahawk/internal/job"
	"tomahawk/internal/source"
)

const (
	Name      = "musicbrainz"
	userAgent = "tomahawk/1.0 ( https://github.com/tomahawk-player )"
)

// Client is a MusicBrainz Web API client that implements job.Source.
type Client struct {
	httpClient *http.Client
	apiURL     string
	limiter    *rate.Limiter
}

// New creates a new MusicBrainz client limited to one request per second.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://musicbrainz.org/ws/2",
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) Name() string { return Name }

// Run implements job.Source.
func (c *Client) Run(ctx context.Context, method string, args job.Args) (job.Tree, error) {
	switch method {
	case "albums":
		return c.albums(ctx, args.String("artist"))
	case "tracks":
		return c.tracks(ctx, args.String("artist"), args.String("album"))
	}
	return nil, fmt.Errorf("%w: %s", source.ErrUnknownMethod, method)
}

func (c *Client) albums(ctx context.Context, artist string) (job.Tree, error) {
	q := fmt.Sprintf("artist:%q AND primarytype:album", artist)

	var resp releaseGroupSearch
	if err := c.get(ctx, "/release-group", url.Values{"query": {q}, "limit": {"100"}}, &resp); err != nil {
		return nil, err
	}

	groups := make([]releaseGroup, 0, len(resp.ReleaseGroups))
	for _, rg := range resp.ReleaseGroups {
		if len(rg.SecondaryTypes) > 0 || !credited(rg.ArtistCredit, artist) {
			continue
		}
		groups = append(groups, rg)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].FirstReleaseDate < groups[j].FirstReleaseDate
	})

	seen := make(map[string]bool, len(groups))
	albums := make([]any, 0, len(groups))
	for _, rg := range groups {
		norm := entity.Normalize(rg.Title)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		albums = append(albums, rg.Title)
	}
	return job.Tree{"artist": artist, "albums": albums}, nil
}

func (c *Client) tracks(ctx context.Context, artist, album string) (job.Tree, error) {
	q := fmt.Sprintf("release:%q AND artist:%q", album, artist)

	var search releaseSearch
	if err := c.get(ctx, "/release", url.Values{"query": {q}, "limit": {"10"}}, &search); err != nil {
		return nil, err
	}

	candidates := make([]release, 0, len(search.Releases))
	for _, rel := range search.Releases {
		if entity.SameName(rel.Title, album) && credited(rel.ArtistCredit, artist) {
			candidates = append(candidates, rel)
		}
	}
	if len(candidates) == 0 {
		return job.Tree{"artist": artist, "album": album, "results": []any{}}, nil
	}
	best := pickBestRelease(candidates)

	var full release
	if err := c.get(ctx, "/release/"+url.PathEscape(best.ID), url.Values{"inc": {"recordings artist-credits"}}, &full); err != nil {
		return nil, err
	}

	year := parseYear(full.Date)
	results := make([]any, 0)
	for _, m := range full.Media {
		for _, t := range m.Tracks {
			trackArtist := joinArtistCredits(t.ArtistCredit)
			if trackArtist == "" {
				trackArtist = artist
			}
			rec := map[string]any{
				"track":      t.Title,
				"artist":     trackArtist,
				"album":      album,
				"albumpos":   t.Position,
				"discnumber": m.Position,
				"duration":   t.Length / 1000,
				"linkUrl":    "https://musicbrainz.org/recording/" + t.Recording.ID,
			}
			if year > 0 {
				rec["year"] = year
			}
			results = append(results, rec)
		}
	}
	return job.Tree{"artist": artist, "album": album, "results": results}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	params.Set("fmt", "json")
	reqURL := c.apiURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("musicbrainz %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode musicbrainz response: %w", err)
	}
	return nil
}

// doWithRetry executes the request, retrying once on 429/503 after the
// server's Retry-After.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		retryAfter := 2
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.httpClient.Do(req.Clone(ctx))
	}

	return resp, nil
}

func credited(credits []artistCredit, artist string) bool {
	if len(credits) == 0 {
		return true
	}
	for _, ac := range credits {
		if entity.SameName(ac.Artist.Name, artist) || entity.SameName(ac.Name, artist) {
			return true
		}
	}
	return entity.SameName(joinArtistCredits(credits), artist)
}

func joinArtistCredits(credits []artistCredit) string {
	var b strings.Builder
	for _, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(ac.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

// pickBestRelease selects the most canonical release of an album.
// Prefers: Official status, Album type, no secondary types, earliest date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0
	if rel.Status == "Official" {
		score += 4
	}
	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}
	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score++
	}
	return score
}

func parseYear(date string) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

// MusicBrainz API response types

type releaseGroupSearch struct {
	ReleaseGroups []releaseGroup `json:"release-groups"`
}

type releaseSearch struct {
	Releases []release `json:"releases"`
}

type artistCredit struct {
	Name       string     `json:"name"`
	JoinPhrase string     `json:"joinphrase"`
	Artist     artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type releaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	PrimaryType      string         `json:"primary-type"`
	SecondaryTypes   []string       `json:"secondary-types"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []artistCredit `json:"artist-credit"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup releaseGroup   `json:"release-group"`
	Media        []media        `json:"media"`
}

type media struct {
	Position int          `json:"position"`
	Tracks   []mediaTrack `json:"tracks"`
}

type mediaTrack struct {
	Position     int            `json:"position"`
	Title        string         `json:"title"`
	Length       int            `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Recording    struct {
		ID string `json:"id"`
	} `json:"recording"`
}
