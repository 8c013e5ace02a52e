package classifier

import (
	"regexp"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

type pattern struct {
	re *regexp.Regexp
	// unless suppresses the match when it also matches the text.
	unless *regexp.Regexp
}

func (p pattern) find(text string) (string, bool) {
	loc := p.re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	if p.unless != nil && p.unless.MatchString(text) {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}

type rule struct {
	category model.Category
	patterns []pattern
}

func (r rule) find(text string) (string, bool) {
	for _, p := range r.patterns {
		if frag, ok := p.find(text); ok {
			return frag, true
		}
	}
	return "", false
}

func re(expr string) pattern {
	return pattern{re: regexp.MustCompile(expr)}
}

func reUnless(expr, unless string) pattern {
	return pattern{re: regexp.MustCompile(expr), unless: regexp.MustCompile(unless)}
}

const negated = `\b(don't|do not|dont|never|no need to|not)\b`

// rules are evaluated top to bottom and the first category with a matching
// pattern wins. Domain questions sit above the generic buckets so that a
// salary question phrased politely is not swallowed by positive or question.
var rules = []rule{
	{
		category: model.CategorySalaryQuestion,
		patterns: []pattern{
			re(`how much (is|will|would) (the|my) (salary|pay|compensation|income)`),
			re(`what (is|will be|would be) (the|my) (salary|pay|compensation|income)`),
			re(`how much (money|euros|dollars) (can|will|would) i (make|earn|get)`),
			re(`\bsalar(y|ies)\b`),
			re(`\bpay\b.*\brange\b`),
			re(`\bhow\b.*\bpa(y|id)\b`),
			re(`\bannual\b.*\bincome\b`),
			re(`\bcompensation\b`),
			re(`\bwages?\b`),
		},
	},
	{
		category: model.CategoryVisaQuestion,
		patterns: []pattern{
			re(`(visa|immigration|work permit|residen(t|ce) permit|relocation) (process|requirements?|procedure|details)`),
			re(`how (can|do|would) i get a (visa|work permit)`),
			re(`(help|assist|support) with (the )?(visa|immigration|relocation|work permit)`),
			re(`what (visa|documents?|paperwork) do i need`),
			re(`\bvisas?\b`),
			re(`\bwork permit\b`),
			re(`\bimmigration\b`),
			re(`\brelocation\b.*\b(help|support|assist)`),
			re(`\bmove to germany\b`),
		},
	},
	{
		category: model.CategoryLanguageQuestion,
		patterns: []pattern{
			re(`(german|language) (requirements?|proficiency|skills?|level|courses?|classes|training)`),
			re(`do i (need|have|require) to (speak|know|learn) (german|deutsch|the language)`),
			re(`how (much|good|well) (german|deutsch)`),
			re(`\blearn(ing)? (german|deutsch)\b`),
			re(`\bspeak\b.*\b(german|deutsch)\b`),
			re(`\bproficiency\b`),
			re(`\bgoethe\b`),
			re(`\b(a1|a2|b1|b2|c1|c2)\b.*\b(level|certificate|exam)\b`),
		},
	},
	{
		category: model.CategoryTimelineQuestion,
		patterns: []pattern{
			re(`how long (does|will|would) (it|the process|this) take`),
			re(`what('s| is) the (timeline|time ?frame)`),
			re(`what (is|are) the (timeline|time ?frame|steps|process)`),
			re(`when (can|could|would|will) i (start|begin|move|relocate)`),
			re(`how (soon|quickly|fast) can (i|we|the process)`),
			re(`\btimeline\b`),
			re(`\btime ?frame\b`),
			re(`\bhow\b.*\blong\b.*\bprocess\b`),
			re(`\bsteps involved\b`),
			re(`\bstart date\b`),
			re(`\bprocess\b.*\bduration\b`),
			re(`\bwhen\b.*\bmove\b`),
		},
	},
	{
		category: model.CategorySchedule,
		patterns: []pattern{
			re(`(can|could) (we|you|i) (have|schedule|arrange|book|set up) a (call|chat|meeting|conversation)`),
			re(`(i'd|i would|i want to|let's|lets) (like to )?(talk|speak|discuss|have a call)`),
			re(`when (are|would) you (be )?(available|free)`),
			re(`\bschedule\b.*\b(call|meeting|chat)\b`),
			re(`\barrange\b.*\bmeeting\b`),
			re(`\bbook\b.*\bappointment\b`),
			reUnless(`\b(call|contact) me\b`, negated+` (call|contact|message|text)`),
			re(`\blet'?s talk\b`),
			re(`\bdiscuss\b.*\bdetails\b`),
		},
	},
	{
		category: model.CategoryLater,
		patterns: []pattern{
			re(`(contact|reach|message|text) me (later|again|next|another time)`),
			re(`\b(busy|occupied|unavailable) (now|right now|at the moment|currently)\b`),
			re(`\bnot (a good|the right) time\b`),
			re(`\bget back to (me|you)\b`),
			re(`\btry (again )?later\b`),
			re(`\blater\b`),
			re(`\bnext (week|month)\b`),
			re(`\bnot now\b`),
			re(`\banother time\b`),
			re(`\bin the future\b`),
		},
	},
	{
		category: model.CategoryPositive,
		patterns: []pattern{
			re(`\b(yes|yeah|sure|certainly|absolutely|definitely),? (i am|i'm|im|i) (very |really )?interested\b`),
			re(`\b(i am|i'm|im) (very |really |definitely )?interested\b`),
			reUnless(`\b(would|want|like|love|keen) (to|more) (know|learn|hear|information)\b`, negated+` (want|like|wish|care)`),
			re(`\btell me more\b`),
			re(`\bsounds (good|great|interesting|exciting)\b`),
			re(`\b(more|further) (details|information|info)\b`),
			re(`\blearn more\b`),
			re(`\bsign me up\b`),
			re(`\bhow\b.*\bapply\b`),
		},
	},
	{
		category: model.CategoryNegative,
		patterns: []pattern{
			re(`\bnot (interested|looking)\b`),
			re(`\b(don't|do not|dont) (contact|message|bother|call|text)\b`),
			re(`\b(remove|delete|take) me (from|off)\b`),
			re(`\bstop (messaging|sending|texting|contacting)\b`),
			re(`\bno,? thanks?\b`),
			re(`\bgo away\b`),
			re(`\bleave me alone\b`),
			re(`\bunsubscribe\b`),
		},
	},
	{
		category: model.CategoryQuestion,
		patterns: []pattern{
			re(`what (is|are) (the|your) (process|benefits?|advantages?|requirements?|qualifications?)`),
			re(`how (do|does|would) (the|this|your) (process|service|program|programme) work`),
			re(`can you (tell|explain|elaborate)`),
			re(`\bhow does (it|this) work\b`),
			re(`\bprocess(es)?\b`),
			re(`\brequirements?\b`),
			re(`\bqualifications?\b`),
			re(`\bexplain\b`),
			re(`\btell me about\b`),
			re(`\bwhat\b.*\bneed\b`),
		},
	},
	{
		category: model.CategoryConfirmation,
		patterns: []pattern{
			re(`\b(ok|okay|got it|understood|received|noted)\b`),
			re(`\b(will|i'll) (consider|think about|check|review|read)\b`),
			re(`\bthanks for (reaching|contacting|sending|sharing)\b`),
			re(`\b(thanks|thank you)\b`),
		},
	},
}

var greeting = regexp.MustCompile(`^(hi|hello|hey|hiya|greetings|good (day|morning|afternoon|evening))\b`)
