package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomahawk/internal/job"
)

func TestParseResultList(t *testing.T) {
	tree, err := job.DecodeTree([]byte(`{
		"results": [
			{"track": "Roads", "artist": "Portishead", "album": "Dummy", "albumpos": 5,
			 "discnumber": "1", "year": 1994, "duration": 305, "bitrate": 320, "size": 12345678,
			 "mimetype": "audio/flac", "url": "file:///music/roads.flac"},
			{"artist": "Portishead", "url": "file:///music/untitled.flac"},
			{"track": "Sour Times", "artist": "Portishead", "albumpos": null, "url": "x"}
		]
	}`))
	require.NoError(t, err)

	results, err := ParseResultList("local", tree["results"])
	require.NoError(t, err)
	require.Len(t, results, 2, "record without a title is skipped")

	r := results[0]
	assert.Equal(t, "Roads", r.Track)
	assert.Equal(t, "Portishead", r.Artist)
	assert.Equal(t, "Dummy", r.Album)
	assert.Equal(t, 5, r.AlbumPos)
	assert.Equal(t, 1, r.DiscNumber)
	assert.Equal(t, 1994, r.Year)
	assert.Equal(t, 305, r.Duration)
	assert.Equal(t, 320, r.Bitrate)
	assert.Equal(t, int64(12345678), r.Size)
	assert.Equal(t, "audio/flac", r.MimeType)
	assert.Equal(t, "local", r.ResolvedBy)
	assert.Equal(t, "local|file:///music/roads.flac", r.ID())

	assert.Equal(t, 0, results[1].AlbumPos)
}

func TestParseResultList_Empty(t *testing.T) {
	results, err := ParseResultList("local", []any{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestParseResultList_Malformed(t *testing.T) {
	tests := []struct {
		name string
		node any
	}{
		{"not an array", map[string]any{"track": "x"}},
		{"absent", nil},
		{"element not an object", []any{"Roads"}},
		{"wrong field type", []any{map[string]any{"track": 42}}},
		{"non numeric position", []any{map[string]any{"track": "Roads", "albumpos": "five"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResultList("local", tt.node)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestStringList(t *testing.T) {
	tree := job.Tree{
		"albums": []any{"Dummy", "Portishead"},
		"empty":  []any{},
		"scalar": "Dummy",
		"mixed":  []any{"Dummy", 3.0},
	}

	values, present, err := StringList(tree, "albums")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []string{"Dummy", "Portishead"}, values)

	values, present, err = StringList(tree, "empty")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Empty(t, values)

	_, present, err = StringList(tree, "missing")
	assert.NoError(t, err)
	assert.False(t, present)

	_, present, err = StringList(tree, "scalar")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.False(t, present)

	_, present, err = StringList(tree, "mixed")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.True(t, present)
}

func TestTextField(t *testing.T) {
	tree := job.Tree{"artist": "Portishead", "n": 3.0}
	s, ok := TextField(tree, "artist")
	assert.True(t, ok)
	assert.Equal(t, "Portishead", s)

	_, ok = TextField(tree, "n")
	assert.False(t, ok)
	_, ok = TextField(tree, "missing")
	assert.False(t, ok)
}
