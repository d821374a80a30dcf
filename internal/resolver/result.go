package resolver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"tomahawk/internal/job"
)

var ErrMalformed = errors.New("malformed result payload")

// Result is one playable candidate reported by a resolver. It is never
// modified after parsing.
type Result struct {
	Track      string
	Artist     string
	Album      string
	AlbumPos   int
	DiscNumber int
	Year       int
	Duration   int // seconds
	Bitrate    int // kbps
	Size       int64
	MimeType   string
	URL        string
	LinkURL    string
	ResolvedBy string
}

// ID identifies the result across fetches: same resolver, same location.
func (r *Result) ID() string {
	if r.URL != "" {
		return r.ResolvedBy + "|" + r.URL
	}
	return r.ResolvedBy + "|" + normalize(r.Artist) + "|" + normalize(r.Album) + "|" + normalize(r.Track)
}

// record is the wire shape of one result inside a "results" array.
type record struct {
	Track      string  `json:"track"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	AlbumPos   flexInt `json:"albumpos"`
	DiscNumber flexInt `json:"discnumber"`
	Year       flexInt `json:"year"`
	Duration   flexInt `json:"duration"`
	Bitrate    flexInt `json:"bitrate"`
	Size       flexInt `json:"size"`
	MimeType   string  `json:"mimetype"`
	URL        string  `json:"url"`
	LinkURL    string  `json:"linkUrl"`
}

// flexInt accepts both JSON numbers and numeric strings. Resolver scripts
// are loose about which one they emit.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*f = flexInt(n)
	return nil
}

// ParseResultList converts a "results" node into Results attributed to
// resolvedBy. A node that is not an array, or that holds anything but
// well-formed records, fails as a whole with ErrMalformed. Records without
// a track title are skipped.
func ParseResultList(resolvedBy string, node any) ([]*Result, error) {
	items, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: results is %T, not an array", ErrMalformed, node)
	}

	results := make([]*Result, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: results[%d] is %T, not an object", ErrMalformed, i, item)
		}
		var rec record
		if err := decodeObject(obj, &rec); err != nil {
			return nil, fmt.Errorf("%w: results[%d]: %v", ErrMalformed, i, err)
		}
		if rec.Track == "" {
			continue
		}
		results = append(results, &Result{
			Track:      rec.Track,
			Artist:     rec.Artist,
			Album:      rec.Album,
			AlbumPos:   int(rec.AlbumPos),
			DiscNumber: int(rec.DiscNumber),
			Year:       int(rec.Year),
			Duration:   int(rec.Duration),
			Bitrate:    int(rec.Bitrate),
			Size:       int64(rec.Size),
			MimeType:   rec.MimeType,
			URL:        rec.URL,
			LinkURL:    rec.LinkURL,
			ResolvedBy: resolvedBy,
		})
	}
	return results, nil
}

func decodeObject(obj map[string]any, dest any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// TextField returns tree[key] when it is a string.
func TextField(tree job.Tree, key string) (string, bool) {
	s, ok := tree[key].(string)
	return s, ok
}

// StringList extracts tree[key] as a list of strings.
//
// present is false when the key is absent or not an array; err is
// ErrMalformed when it is not an array or any element is not a string.
// A nil error with present=false means the key was simply absent.
func StringList(tree job.Tree, key string) (values []string, present bool, err error) {
	node, ok := tree[key]
	if !ok || node == nil {
		return nil, false, nil
	}
	items, ok := node.([]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is %T, not an array", ErrMalformed, key, node)
	}
	values = make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, true, fmt.Errorf("%w: %s[%d] is %T, not a string", ErrMalformed, key, i, item)
		}
		values = append(values, s)
	}
	return values, true, nil
}
