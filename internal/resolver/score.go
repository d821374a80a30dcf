package resolver

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MaxScore is the similarity of a perfect match.
const MaxScore = 1.0

const (
	titleWeight  = 0.6
	artistWeight = 0.4
	albumWeight  = 0.2
)

// score computes how well a result matches the expected metadata, in [0, MaxScore].
// Album only counts when both sides carry one; artist is ignored when the
// query has none.
func score(title, artist, album string, r *Result) float64 {
	titleScore := similarity(normalize(CleanTitle(title)), normalize(CleanTitle(r.Track)))
	if artist == "" {
		return titleScore
	}

	total := titleWeight + artistWeight
	sum := titleScore*titleWeight + similarity(normalize(artist), normalize(r.Artist))*artistWeight
	if album != "" && r.Album != "" {
		total += albumWeight
		sum += similarity(normalize(album), normalize(r.Album)) * albumWeight
	}
	if sum >= total {
		return MaxScore
	}
	return sum / total
}

// similarity returns how similar two normalized strings are (0.0-1.0).
// Token overlap catches reordered words, compact comparison catches
// "theweeknd" vs "the weeknd" and the edit-distance ratio catches typos.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	compactA := strings.ReplaceAll(a, " ", "")
	compactB := strings.ReplaceAll(b, " ", "")
	if compactA == compactB {
		return 1.0
	}

	return max(tokenOverlap(a, b), editRatio(compactA, compactB))
}

func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	matches := 0
	for _, t := range tokensA {
		if setB[t] {
			matches++
		}
	}

	return float64(matches) / float64(max(len(tokensA), len(tokensB)))
}

func editRatio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}
	d := fuzzy.LevenshteinDistance(a, b)
	if d >= longest {
		return 0.0
	}
	return 1.0 - float64(d)/float64(longest)
}

// normalize lowercases and strips non-alphanumeric characters for comparison.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			space = true
		}
	}
	return b.String()
}
