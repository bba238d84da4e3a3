package titles

import (
	"math"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
)

// Scorer rates the similarity of two strings from 0 to 100.
type Scorer func(a, b string) int

// indelParams weighs a substitution as a deletion plus an insertion, which
// makes (len(a)+len(b)-dist)/(len(a)+len(b)) the usual similarity ratio.
var indelParams = levenshtein.NewParams().SubCost(2)

// Normalize lowercases s, turns every rune that is not a letter, digit or
// underscore into a space and trims the ends.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.TrimSpace(mapped)
}

// ExtractOne normalizes query and candidates, scores every candidate and
// returns the original text of the first candidate with the highest score.
// ok is false when there are no candidates.
func ExtractOne(query string, candidates []string, scorer Scorer) (best string, score int, ok bool) {
	if len(candidates) == 0 {
		return "", 0, false
	}
	q := Normalize(query)
	score = -1
	for _, c := range candidates {
		sc := scorer(q, Normalize(c))
		if sc > score {
			best, score = c, sc
		}
	}
	return best, score, true
}

// PartialRatio scores how well the shorter string matches its best aligned
// window in the longer one. Windows are anchored on the matching blocks of a
// SequenceMatcher; a window that scores above 0.995 short-circuits to 100.
//
// This approximates fuzzywuzzy's partial_ratio with the python-Levenshtein
// backend: windows are scored with the indel ratio, not difflib's 2*M/T.
// Block alignment comes from difflib, so when a title has no exact
// substring match the score can differ from that backend by a few points.
// Exact substring matches always score 100 under either alignment.
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	shorter, longer := ra, rb
	if len(ra) > len(rb) {
		shorter, longer = rb, ra
	}

	matcher := difflib.NewMatcher(runeStrings(shorter), runeStrings(longer))
	bestRatio := 0.0
	for _, block := range matcher.GetMatchingBlocks() {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}
		r := ratio(shorter, longer[start:end])
		if r > 0.995 {
			return 100
		}
		if r > bestRatio {
			bestRatio = r
		}
	}
	return int(math.RoundToEven(100 * bestRatio))
}

// ratio is (lensum - indel distance) / lensum.
func ratio(a, b []rune) float64 {
	lensum := len(a) + len(b)
	if lensum == 0 {
		return 1
	}
	dist := levenshtein.Distance(string(a), string(b), indelParams)
	return float64(lensum-dist) / float64(lensum)
}

func runeStrings(rs []rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
