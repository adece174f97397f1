// Package textmetrics derives simple lexical statistics from description
// sequences: how much adjacent descriptions repeat each other, and how much
// of a description is action vocabulary rather than filler.
package textmetrics

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func tokenize(text string) []string {
	text = nonAlnum.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(text)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// JaccardOverlap measures how much two texts repeat each other:
// |W1 ∩ W2| / |W1 ∪ W2| over their lowercased alphanumeric token sets.
func JaccardOverlap(a, b string) float64 {
	wa, wb := tokenSet(a), tokenSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 0
	}

	inter := 0
	for t := range wa {
		if _, ok := wb[t]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

// LexicalRedundancy computes the Jaccard overlap between each pair of
// adjacent texts in temporal order. It returns the average overlap and the
// per-pair values (length len(texts)-1). Fewer than two texts yield zero and
// no pairs.
func LexicalRedundancy(texts []string) (float64, []float64) {
	if len(texts) <= 1 {
		return 0, nil
	}

	overlaps := make([]float64, 0, len(texts)-1)
	sum := 0.0
	for i := 1; i < len(texts); i++ {
		o := JaccardOverlap(texts[i-1], texts[i])
		overlaps = append(overlaps, o)
		sum += o
	}
	return sum / float64(len(overlaps)), overlaps
}
