package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"tomahawk/internal/collection"
	"tomahawk/internal/entity"
	"tomahawk/internal/job"
	"tomahawk/internal/resolver"
)

type CollectionResponse struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	IconPath       string           `json:"iconPath,omitempty"`
	Local          bool             `json:"local"`
	ArtistsPending bool             `json:"artistsPending"`
	Stats          collection.Stats `json:"stats"`
}

// ListResponse wraps every cache read. Pending is true while a fetch for
// the requested key is outstanding.
type ListResponse[T any] struct {
	Items   []T  `json:"items"`
	Pending bool `json:"pending"`
}

type ArtistResponse struct {
	Name string `json:"name"`
}

type AlbumResponse struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

type ResultResponse struct {
	Track      string  `json:"track"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album,omitempty"`
	AlbumPos   int     `json:"albumPos,omitempty"`
	DiscNumber int     `json:"discNumber,omitempty"`
	Duration   int     `json:"duration,omitempty"`
	URL        string  `json:"url,omitempty"`
	ResolvedBy string  `json:"resolvedBy"`
	Score      float64 `json:"score"`
}

type TrackResponse struct {
	Title    string           `json:"title"`
	Artist   string           `json:"artist"`
	Album    string           `json:"album,omitempty"`
	Playable bool             `json:"playable"`
	Results  []ResultResponse `json:"results"`
}

type JobResponse struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Method      string     `json:"method"`
	Args        job.Args   `json:"args,omitempty"`
	Status      job.Status `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   string     `json:"created_at"`
	StartedAt   *string    `json:"started_at,omitempty"`
	CompletedAt *string    `json:"completed_at,omitempty"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	all := s.collections.All()
	out := make([]CollectionResponse, len(all))
	for i, c := range all {
		out[i] = collectionToResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, collectionToResponse(c))
}

func (s *Server) handleArtists(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		c.Refresh()
	}

	artists := c.Artists(boolParam(r, "sorted"))
	if q := r.URL.Query().Get("q"); q != "" {
		artists = filterArtists(artists, q)
	}

	items := make([]ArtistResponse, len(artists))
	for i, a := range artists {
		items[i] = ArtistResponse{Name: a.Name()}
	}
	writeJSON(w, http.StatusOK, ListResponse[ArtistResponse]{Items: items, Pending: c.ArtistsPending()})
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	artist, ok := c.LookupArtist(pathParam(r, "artist"))
	if !ok {
		writeError(w, http.StatusNotFound, "Artist not found")
		return
	}

	albums := c.GetArtistAlbums(artist, boolParam(r, "sorted"))
	items := make([]AlbumResponse, len(albums))
	for i, al := range albums {
		items[i] = AlbumResponse{Name: al.Name(), Artist: al.Artist().Name()}
	}
	writeJSON(w, http.StatusOK, ListResponse[AlbumResponse]{Items: items, Pending: c.Pending(artist.CacheKey())})
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	artist, ok := c.LookupArtist(pathParam(r, "artist"))
	if !ok {
		writeError(w, http.StatusNotFound, "Artist not found")
		return
	}
	album, ok := c.LookupAlbum(pathParam(r, "album"), artist)
	if !ok {
		writeError(w, http.StatusNotFound, "Album not found")
		return
	}

	tracks := c.GetAlbumTracks(album, boolParam(r, "sorted"))
	items := make([]TrackResponse, len(tracks))
	for i, q := range tracks {
		items[i] = queryToResponse(q)
	}
	writeJSON(w, http.StatusOK, ListResponse[TrackResponse]{Items: items, Pending: c.Pending(album.CacheKey())})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.List()
	out := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = jobToResponse(j)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(j))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := s.jobs.Cancel(jobID); err != nil {
		s.writeJobError(w, err)
		return
	}
	s.logger.Info("job cancel requested", "job", jobID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.logger.Error("job request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) (*collection.Collection, bool) {
	c, ok := s.collections.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return nil, false
	}
	return c, true
}

// filterArtists keeps artists whose name fuzzily matches q, best match first.
func filterArtists(artists []*entity.Artist, q string) []*entity.Artist {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name()
	}
	ranks := fuzzy.RankFindNormalizedFold(q, names)
	sort.Stable(ranks)

	out := make([]*entity.Artist, len(ranks))
	for i, rank := range ranks {
		out[i] = artists[rank.OriginalIndex]
	}
	return out
}

func collectionToResponse(c *collection.Collection) CollectionResponse {
	return CollectionResponse{
		ID:             c.ID(),
		Name:           c.Name(),
		IconPath:       c.IconPath(),
		Local:          c.IsLocal(),
		ArtistsPending: c.ArtistsPending(),
		Stats:          c.Stats(),
	}
}

func queryToResponse(q *resolver.Query) TrackResponse {
	results := q.Results()
	resp := TrackResponse{
		Title:    q.Title(),
		Artist:   q.Artist(),
		Album:    q.Album(),
		Playable: q.IsPlayable(),
		Results:  make([]ResultResponse, len(results)),
	}
	for i, sr := range results {
		resp.Results[i] = ResultResponse{
			Track:      sr.Result.Track,
			Artist:     sr.Result.Artist,
			Album:      sr.Result.Album,
			AlbumPos:   sr.Result.AlbumPos,
			DiscNumber: sr.Result.DiscNumber,
			Duration:   sr.Result.Duration,
			URL:        sr.Result.URL,
			ResolvedBy: sr.Result.ResolvedBy,
			Score:      sr.Score,
		}
	}
	return resp
}

func jobToResponse(j job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Target:    j.Target,
		Method:    j.Method,
		Args:      j.Args,
		Status:    j.Status,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		started := j.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := j.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

// pathParam returns the decoded route parameter. chi hands back the raw
// segment when the request path carried escapes.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func boolParam(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
