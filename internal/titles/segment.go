// Package titles splits news headlines into a show title and a trailing
// description, and reconciles the show title against canonical titles.
package titles

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Separators are the phrases that end the show name in a headline. Earlier
// matches in the headline win; at the same position the earlier phrase wins.
var Separators = []string{
	" Anime ", " Gets ", " Announces ", " Reveals ", " Confirmed ",
	" Premieres ", " Debuts ", " Trailer ", " English Dub ",
}

// Threshold is the score a candidate must exceed to replace the core title.
const Threshold = 80

// Segmenter splits and reconciles headlines. The zero value is not usable;
// build one with NewSegmenter.
type Segmenter struct {
	pattern *regexp.Regexp
	scorer  Scorer
}

// NewSegmenter builds a Segmenter for the given separator phrases. A nil
// scorer uses PartialRatio.
func NewSegmenter(separators []string, scorer Scorer) *Segmenter {
	quoted := make([]string, len(separators))
	for i, s := range separators {
		quoted[i] = regexp.QuoteMeta(s)
	}
	if scorer == nil {
		scorer = PartialRatio
	}
	return &Segmenter{
		pattern: regexp.MustCompile("(?i)(" + strings.Join(quoted, "|") + ")"),
		scorer:  scorer,
	}
}

// Default is the Segmenter used by the pipeline.
var Default = NewSegmenter(Separators, nil)

// Split returns the text before the first separator as the core title and
// the text from the separator onward as the description, both trimmed.
// Without a separator the whole headline is the core title.
func (s *Segmenter) Split(headline string) (core, description string) {
	loc := s.pattern.FindStringIndex(headline)
	if loc == nil {
		return strings.TrimSpace(headline), ""
	}
	return strings.TrimSpace(headline[:loc[0]]), strings.TrimSpace(headline[loc[0]:])
}

// Reconcile returns the best-scoring candidate when its score exceeds
// Threshold, otherwise core unchanged. The score of the best candidate is
// returned either way (0 when there are no candidates).
func (s *Segmenter) Reconcile(core string, candidates []string) (string, int) {
	best, score, ok := ExtractOne(core, candidates, s.scorer)
	if !ok {
		log.Debug().Str("coreTitle", core).Msg("No fuzzy match candidates")
		return core, 0
	}
	log.Debug().
		Str("coreTitle", core).
		Str("candidate", best).
		Int("score", score).
		Msg("Fuzzy matched core title")
	if score > Threshold {
		return best, score
	}
	return core, score
}

// Segment splits the headline and reconciles its core title.
func (s *Segmenter) Segment(headline string, candidates []string) Segmented {
	core, desc := s.Split(headline)
	title, score := s.Reconcile(core, candidates)
	return Segmented{CoreTitle: core, Title: title, Description: desc, Score: score}
}

// Segmented is the outcome of Segment. CoreTitle is the text before the
// separator; Title is the reconciled title.
type Segmented struct {
	CoreTitle   string `json:"coreTitle"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}
