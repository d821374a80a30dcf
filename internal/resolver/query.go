package resolver

import (
	"sort"
	"strings"
	"sync"

	"tomahawk/pkg/utils"
)

// PlayableScore is the score above which a query counts as resolved.
const PlayableScore = 0.7

// ScoredResult pairs a result with its similarity to the query holding it.
type ScoredResult struct {
	Result *Result
	Score  float64
}

// Query is a logical track: the metadata a listener asked for plus every
// candidate result found for it so far.
type Query struct {
	key       string
	title     string
	artist    string
	album     string
	onlyLocal bool

	mu      sync.RWMutex
	results []ScoredResult
}

func (q *Query) Key() string     { return q.key }
func (q *Query) Title() string   { return q.title }
func (q *Query) Artist() string  { return q.artist }
func (q *Query) Album() string   { return q.album }
func (q *Query) OnlyLocal() bool { return q.onlyLocal }

// HowSimilar scores r against this query's metadata.
func (q *Query) HowSimilar(r *Result) float64 {
	return score(q.title, q.artist, q.album, r)
}

// AddTrackResult attaches r with the given score. Results accumulate; a
// result already held (same resolver and location) only has its score
// refreshed.
func (q *Query) AddTrackResult(r *Result, score float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := r.ID()
	for i := range q.results {
		if q.results[i].Result.ID() == id {
			q.results[i] = ScoredResult{Result: r, Score: score}
			q.sortLocked()
			return
		}
	}
	q.results = append(q.results, ScoredResult{Result: r, Score: score})
	q.sortLocked()
}

func (q *Query) sortLocked() {
	sort.SliceStable(q.results, func(i, j int) bool {
		return q.results[i].Score > q.results[j].Score
	})
}

// Results returns a copy of the held results, best first.
func (q *Query) Results() []ScoredResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]ScoredResult, len(q.results))
	copy(out, q.results)
	return out
}

// BestResult returns the highest scored result.
func (q *Query) BestResult() (ScoredResult, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.results) == 0 {
		return ScoredResult{}, false
	}
	return q.results[0], true
}

// IsPlayable reports whether some result scores at least PlayableScore.
func (q *Query) IsPlayable() bool {
	best, ok := q.BestResult()
	return ok && best.Score >= PlayableScore
}

// Index is the process-wide registry of queries. Every resolver reporting
// the same song lands on the same *Query.
type Index struct {
	queries *utils.SyncMap[string, *Query]
}

func NewIndex() *Index {
	return &Index{queries: utils.NewSyncMap[string, *Query]()}
}

// Get returns the query matching r's metadata, creating it on first use.
func (ix *Index) Get(r *Result, onlyLocal bool) *Query {
	return ix.Query(r.Track, r.Artist, r.Album, onlyLocal)
}

// Query returns the query for the given metadata, creating it on first use.
func (ix *Index) Query(title, artist, album string, onlyLocal bool) *Query {
	key := queryKey(title, artist, album, onlyLocal)
	q, _ := ix.queries.LoadOrCreate(key, func() *Query {
		return &Query{
			key:       key,
			title:     strings.TrimSpace(title),
			artist:    strings.TrimSpace(artist),
			album:     strings.TrimSpace(album),
			onlyLocal: onlyLocal,
		}
	})
	return q
}

// Len returns the number of interned queries.
func (ix *Index) Len() int { return ix.queries.Len() }

func queryKey(title, artist, album string, onlyLocal bool) string {
	scope := "all"
	if onlyLocal {
		scope = "local"
	}
	return strings.Join([]string{
		normalize(CleanTitle(title)),
		normalize(artist),
		normalize(album),
		scope,
	}, "\x1f")
}
