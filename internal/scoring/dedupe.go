package scoring

import (
	"strings"
	"unicode"
)

// DuplicateThreshold is the token Jaccard similarity at which two statements
// count as the same point.
const DuplicateThreshold = 0.6

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "with": {}, "while": {}, "which": {},
}

func tokens(s string) map[string]struct{} {
	set := map[string]struct{}{}
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard index of the two statements' content tokens.
func Similarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// Pool interleaves first and second (first[0], second[0], first[1], ...) and
// keeps up to maxN statements, skipping blanks and near-duplicates of anything
// already kept. When fewer than minN distinct statements exist it tops up with
// the skipped near-duplicates, never with exact repeats.
func Pool(first, second []string, minN, maxN int) []string {
	var candidates []string
	for i := 0; i < len(first) || i < len(second); i++ {
		if i < len(first) {
			candidates = append(candidates, strings.TrimSpace(first[i]))
		}
		if i < len(second) {
			candidates = append(candidates, strings.TrimSpace(second[i]))
		}
	}

	out := make([]string, 0, maxN)
	var skipped []string
	for _, c := range candidates {
		if len(out) == maxN {
			break
		}
		if c == "" {
			continue
		}
		if duplicates(out, c) {
			skipped = append(skipped, c)
			continue
		}
		out = append(out, c)
	}

	for _, c := range skipped {
		if len(out) >= minN {
			break
		}
		if !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func duplicates(kept []string, s string) bool {
	for _, k := range kept {
		if Similarity(k, s) >= DuplicateThreshold {
			return true
		}
	}
	return false
}

func contains(kept []string, s string) bool {
	for _, k := range kept {
		if strings.EqualFold(k, s) {
			return true
		}
	}
	return false
}
