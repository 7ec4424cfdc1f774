package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// Closest returns the candidate most similar to name by Jaro-Winkler
// distance, comparing normalized names. It reports false when nothing
// resembles name at all.
func Closest(name string, candidates []string) (string, bool) {
	name = NormalizeName(name)

	var best string
	var bestSimilarity float64
	for _, c := range candidates {
		similarity := matchr.JaroWinkler(name, NormalizeName(c), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = c
		}
	}
	return best, bestSimilarity > 0
}
