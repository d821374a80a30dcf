package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		artist    string
		album     string
		result    Result
		wantAbove float64
		wantBelow float64
	}{
		{
			name:      "exact match",
			title:     "Santeria",
			artist:    "Marracash",
			result:    Result{Track: "Santeria", Artist: "Marracash"},
			wantAbove: 0.99,
		},
		{
			name:      "case insensitive",
			title:     "HELLO",
			artist:    "ADELE",
			result:    Result{Track: "hello", Artist: "adele"},
			wantAbove: 0.99,
		},
		{
			name:      "partial title match",
			title:     "Blinding Lights",
			artist:    "The Weeknd",
			result:    Result{Track: "Blinding Lights (Remix)", Artist: "The Weeknd"},
			wantAbove: 0.7,
		},
		{
			name:      "typo in artist",
			title:     "Teardrop",
			artist:    "Massive Atack",
			result:    Result{Track: "Teardrop", Artist: "Massive Attack"},
			wantAbove: 0.9,
		},
		{
			name:      "completely different",
			title:     "Song A",
			artist:    "Artist A",
			result:    Result{Track: "Totally Different", Artist: "Nobody Else"},
			wantBelow: 0.3,
		},
		{
			name:      "no artist in query uses title only",
			title:     "Bohemian Rhapsody",
			result:    Result{Track: "Bohemian Rhapsody", Artist: "Queen"},
			wantAbove: 0.99,
		},
		{
			name:      "album mismatch lowers score",
			title:     "Roads",
			artist:    "Portishead",
			album:     "Dummy",
			result:    Result{Track: "Roads", Artist: "Portishead", Album: "Roseland NYC Live"},
			wantBelow: 0.9,
		},
		{
			name:      "decorated title",
			title:     "Glory Box",
			artist:    "Portishead",
			result:    Result{Track: "Glory Box (Official Video)", Artist: "Portishead"},
			wantAbove: 0.99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := score(tt.title, tt.artist, tt.album, &tt.result)
			if tt.wantAbove > 0 {
				assert.Greater(t, got, tt.wantAbove)
			}
			if tt.wantBelow > 0 {
				assert.Less(t, got, tt.wantBelow)
			}
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, MaxScore)
		})
	}
}

func TestScoreIdenticalIsMax(t *testing.T) {
	r := &Result{Track: "Roads", Artist: "Portishead", Album: "Dummy"}
	assert.Equal(t, MaxScore, score("Roads", "Portishead", "Dummy", r))
	assert.Equal(t, MaxScore, score("Roads", "Portishead", "", r))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"hello", "hello", 1.0},
		{"", "", 1.0},
		{"hello", "", 0.0},
		{"", "hello", 0.0},
		{"the weeknd", "theweeknd", 1.0},
		{"abcd", "wxyz", 0.0},
	}

	for _, tt := range tests {
		got := similarity(tt.a, tt.b)
		assert.InDelta(t, tt.want, got, 0.001, "similarity(%q, %q)", tt.a, tt.b)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello, World!", "hello world"},
		{"AC/DC", "ac dc"},
		{"  spaced   out  ", "spaced out"},
		{"Beyoncé", "beyoncé"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.in), tt.in)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello (Official Video)", "Hello"},
		{"Hello [Official Music Video]", "Hello"},
		{"Song (feat. Someone)", "Song"},
		{"Song [ft. Someone Else] (Lyrics)", "Song"},
		{"Wish You Were Here (2011 Remastered)", "Wish You Were Here"},
		{"Plain Title", "Plain Title"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanTitle(tt.in), tt.in)
	}
}
