package resolver

import (
	"regexp"
	"strings"
)

// Suffixes that describe a release rather than the song.
var titleCleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[\(\[]official\s+(music\s+)?video[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]official\s+audio[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]official\s+lyric\s+video[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]lyrics?[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]audio[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[](hd|hq|4k)[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[](explicit|clean)[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[](\d{4}\s+)?remaster(ed)?(\s+\d{4})?[\)\]]`),
}

var featuringPattern = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+([^\)\]]+)[\)\]]`)

// CleanTitle strips release decorations and featured-artist credits so the
// same song reported by different resolvers lands on the same Query.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, p := range titleCleanupPatterns {
		title = p.ReplaceAllString(title, "")
	}
	title = featuringPattern.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}
