package model

// Category names a group of message templates. Lifecycle categories drive
// outbound campaigns, reply categories are produced by the classifier.
type Category string

const (
	CategoryInitial        Category = "initial"
	CategoryFirstFollowUp  Category = "firstFollowUp"
	CategorySecondFollowUp Category = "secondFollowUp"

	CategoryPositive         Category = "positive"
	CategoryNegative         Category = "negative"
	CategoryQuestion         Category = "question"
	CategorySalaryQuestion   Category = "salary_question"
	CategoryVisaQuestion     Category = "visa_question"
	CategoryLanguageQuestion Category = "language_question"
	CategoryTimelineQuestion Category = "timeline_question"
	CategorySchedule         Category = "schedule"
	CategoryLater            Category = "later"
	CategoryConfirmation     Category = "confirmation"
	CategoryNeutral          Category = "neutral"
	CategoryUnclear          Category = "unclear"
)

// ReplyCategories lists every category the classifier can return.
var ReplyCategories = []Category{
	CategoryPositive,
	CategoryNegative,
	CategoryQuestion,
	CategorySalaryQuestion,
	CategoryVisaQuestion,
	CategoryLanguageQuestion,
	CategoryTimelineQuestion,
	CategorySchedule,
	CategoryLater,
	CategoryConfirmation,
	CategoryNeutral,
	CategoryUnclear,
}

// Stage is a point of the outbound lifecycle.
type Stage string

const (
	StageInitial        Stage = "initial"
	StageFirstFollowUp  Stage = "firstFollowUp"
	StageSecondFollowUp Stage = "secondFollowUp"
)

func ParseStage(s string) (Stage, bool) {
	switch Stage(s) {
	case StageInitial, StageFirstFollowUp, StageSecondFollowUp:
		return Stage(s), true
	}
	return "", false
}

// Category returns the template category used for outbound messages of the stage.
func (s Stage) Category() Category {
	return Category(s)
}

// ProcessingStatus is the in-flight status written before a send of this stage.
func (s Stage) ProcessingStatus() Status {
	switch s {
	case StageFirstFollowUp:
		return FollowUpProcessing
	case StageSecondFollowUp:
		return SecondFollowUpProcessing
	default:
		return Processing
	}
}

// SentStatus is the status written after the transport accepted a send of this stage.
func (s Stage) SentStatus() Status {
	switch s {
	case StageFirstFollowUp:
		return FollowUpSent
	case StageSecondFollowUp:
		return SecondFollowUpSent
	default:
		return Sent
	}
}
