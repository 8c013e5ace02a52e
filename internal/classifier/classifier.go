// Package classifier maps free-text replies from leads onto the reply
// categories used to pick an auto-reply template.
//
// Classification is a two-step cascade. A priority-ordered list of
// high-precision patterns is tried first and the first matching category wins.
// When nothing matches, keyword hits are counted per category and the highest
// count wins, with ties broken by a fixed order. The result is deterministic.
package classifier

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

const (
	maxConfidence = 95
	patternBonus  = 5
	// shortMessageLen is the length from which an unmatched reply counts as neutral
	// rather than unclear.
	shortMessageLen = 10
)

type Result struct {
	Category              model.Category `json:"category"`
	Confidence            int            `json:"confidence"`
	MatchedKeywords       []string       `json:"matchedKeywords"`
	RecommendedTemplateID string         `json:"recommendedTemplateId,omitempty"`
}

type matchKind int

const (
	noMatch matchKind = iota
	patternMatch
	keywordMatch
)

func (k matchKind) String() string {
	switch k {
	case patternMatch:
		return "pattern"
	case keywordMatch:
		return "keyword"
	default:
		return "none"
	}
}

type match struct {
	kind     matchKind
	category model.Category
	evidence []string
}

func (m match) confidence() int {
	return Confidence(len(m.evidence), m.kind == patternMatch)
}

// Confidence saturates with the amount of evidence and is capped at 95. Pattern
// matches earn a flat bonus over keyword counting. No evidence means zero.
func Confidence(evidence int, fromPattern bool) int {
	if evidence <= 0 {
		return 0
	}
	c := int(math.Round((1 - 1/float64(evidence+1)) * 100))
	if fromPattern {
		c += patternBonus
	}
	if c > maxConfidence {
		c = maxConfidence
	}
	return c
}

// Recommender returns the id of the template suggested for a category, or "".
type Recommender func(model.Category) string

type Classifier struct {
	recommend Recommender
}

type Option func(*Classifier)

func WithRecommender(r Recommender) Option {
	return func(c *Classifier) { c.recommend = r }
}

func New(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var std = New()

// Classify runs the default classifier, which carries no template hints.
func Classify(text string) Result {
	return std.Classify(text)
}

func (c *Classifier) Classify(text string) Result {
	m := c.match(normalize(text))

	res := Result{
		Category:        m.category,
		Confidence:      m.confidence(),
		MatchedKeywords: m.evidence,
	}
	if res.MatchedKeywords == nil {
		res.MatchedKeywords = []string{}
	}
	if c.recommend != nil {
		res.RecommendedTemplateID = c.recommend(res.Category)
	}
	return res
}

func (c *Classifier) match(text string) match {
	if text == "" {
		return match{kind: noMatch, category: model.CategoryUnclear}
	}

	if m, ok := matchRules(text); ok {
		return m
	}

	if m, ok := countKeywords(text); ok {
		return m
	}

	if utf8.RuneCountInString(text) >= shortMessageLen || greeting.MatchString(text) {
		return match{kind: noMatch, category: model.CategoryNeutral}
	}
	return match{kind: noMatch, category: model.CategoryUnclear}
}

func matchRules(text string) (match, bool) {
	for _, r := range rules {
		frag, ok := r.find(text)
		if !ok {
			continue
		}
		evidence := evidenceSets[r.category].hits(text)
		if len(evidence) == 0 {
			evidence = []string{strings.TrimSpace(frag)}
		}
		return match{kind: patternMatch, category: r.category, evidence: evidence}, true
	}
	return match{}, false
}

func countKeywords(text string) (match, bool) {
	best := match{kind: noMatch, category: model.CategoryNeutral}
	for _, set := range fallbackSets {
		hits := set.hits(text)
		if len(hits) == 0 {
			continue
		}
		if len(hits) > len(best.evidence) ||
			(len(hits) == len(best.evidence) && tieRank(set.category) < tieRank(best.category)) {
			best = match{kind: keywordMatch, category: set.category, evidence: hits}
		}
	}
	return best, best.kind == keywordMatch
}

var quotes = strings.NewReplacer("’", "'", "‘", "'")

func normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(quotes.Replace(text)))
}
