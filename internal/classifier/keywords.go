package classifier

import (
	"regexp"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

type keyword struct {
	word string
	re   *regexp.Regexp
}

type keywordSet struct {
	category model.Category
	words    []keyword
}

func newKeywordSet(category model.Category, words ...string) keywordSet {
	set := keywordSet{category: category, words: make([]keyword, 0, len(words))}
	for _, w := range words {
		set.words = append(set.words, keyword{
			word: w,
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`),
		})
	}
	return set
}

// hits returns the keywords present in text, in list order. A keyword counts
// once no matter how often it occurs.
func (s keywordSet) hits(text string) []string {
	var out []string
	for _, k := range s.words {
		if k.re.MatchString(text) {
			out = append(out, k.word)
		}
	}
	return out
}

var (
	positiveWords = newKeywordSet(model.CategoryPositive,
		"yes", "sure", "interested", "tell me more", "more information",
		"sounds good", "would like", "want to know", "sign me up", "apply",
		"next step", "good", "great", "wonderful", "amazing", "perfect",
		"excellent", "nice", "helpful", "proceed", "let's do it", "go ahead",
		"send details",
	)
	negativeWords = newKeywordSet(model.CategoryNegative,
		"no", "not interested", "sorry", "don't contact", "stop", "unsubscribe",
		"remove me", "go away", "leave me alone", "not looking", "don't want",
		"not for me", "decline", "no thanks", "nope", "never", "not suitable",
	)
	questionWords = newKeywordSet(model.CategoryQuestion,
		"what", "how", "where", "when", "why", "who", "which", "is it",
		"do you", "can i", "would", "could", "should", "eligibility",
		"criteria", "duration", "steps", "procedure", "job", "position", "role",
	)
	scheduleWords = newKeywordSet(model.CategorySchedule,
		"call", "meeting", "discuss", "talk", "schedule", "appointment", "meet",
		"consultation", "interview", "speak", "chat", "zoom", "teams", "skype",
		"google meet",
	)
	laterWords = newKeywordSet(model.CategoryLater,
		"later", "not now", "busy", "another time", "next week", "next month",
		"postpone", "not ready", "remind", "get back", "some time", "tomorrow",
		"weekend", "soon",
	)
	confirmationWords = newKeywordSet(model.CategoryConfirmation,
		"ok", "okay", "received", "got it", "thanks", "thank you", "thx",
		"noted", "understood", "understand", "seen", "clear",
	)
	salaryWords = newKeywordSet(model.CategorySalaryQuestion,
		"salary", "pay", "paid", "compensation", "money", "euros", "income",
		"earnings", "wage", "wages", "benefits", "package", "net", "gross", "earn",
	)
	visaWords = newKeywordSet(model.CategoryVisaQuestion,
		"visa", "immigration", "work permit", "residency", "relocation",
		"relocate", "papers", "documents", "passport", "embassy", "citizenship",
	)
	languageWords = newKeywordSet(model.CategoryLanguageQuestion,
		"language", "german", "deutsch", "fluent", "proficiency", "course",
		"classes", "training", "level", "a1", "a2", "b1", "b2", "c1", "c2", "goethe",
	)
	timelineWords = newKeywordSet(model.CategoryTimelineQuestion,
		"timeline", "duration", "how long", "start date", "timeframe",
		"time frame", "deadline", "month", "months", "week", "weeks", "start",
	)
)

// fallbackSets are counted when no rule matched.
var fallbackSets = []keywordSet{
	positiveWords,
	negativeWords,
	questionWords,
	scheduleWords,
	laterWords,
	confirmationWords,
}

// evidenceSets supply the matched keywords reported for a rule match.
var evidenceSets = map[model.Category]keywordSet{
	model.CategorySalaryQuestion:   salaryWords,
	model.CategoryVisaQuestion:     visaWords,
	model.CategoryLanguageQuestion: languageWords,
	model.CategoryTimelineQuestion: timelineWords,
	model.CategorySchedule:         scheduleWords,
	model.CategoryLater:            laterWords,
	model.CategoryPositive:         positiveWords,
	model.CategoryNegative:         negativeWords,
	model.CategoryQuestion:         questionWords,
	model.CategoryConfirmation:     confirmationWords,
}

// tieOrder breaks equal keyword counts; earlier wins.
var tieOrder = []model.Category{
	model.CategoryQuestion,
	model.CategoryPositive,
	model.CategorySchedule,
	model.CategoryLater,
	model.CategoryNegative,
	model.CategoryConfirmation,
	model.CategoryNeutral,
}

func tieRank(c model.Category) int {
	for i, t := range tieOrder {
		if t == c {
			return i
		}
	}
	return len(tieOrder)
}
