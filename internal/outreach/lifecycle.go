package outreach

import (
	"slices"
	"strings"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

var initialBranch = []model.Status{model.Sent, model.Delivered, model.Read}

func inInitialBranch(s model.Status) bool {
	return slices.Contains(initialBranch, s)
}

// Entry lists the statuses from which a send of each stage may start. A failed
// lead re-enters through the initial stage only.
var Entry = map[model.Stage][]model.Status{
	model.StageInitial:        {model.NotSent, model.Failed},
	model.StageFirstFollowUp:  initialBranch,
	model.StageSecondFollowUp: {model.FollowUpSent},
}

// CanStart reports whether a lead in status s may be marked processing for stage.
func CanStart(stage model.Stage, s model.Status) bool {
	return slices.Contains(Entry[stage], s)
}

// StatusesForStage is the store-side prefilter for stage candidates.
func StatusesForStage(stage model.Stage) []model.Status {
	if stage == model.StageInitial {
		return []model.Status{model.NotSent}
	}
	return slices.Clone(Entry[stage])
}

var deliveryRank = map[model.Status]int{
	model.Sent:      1,
	model.Delivered: 2,
	model.Read:      3,
}

// ApplyDelivery maps a provider delivery status onto the lead status. The lead
// only moves forward along sent, delivered, read. A failure report moves a lead
// that is still in sent to failed. Every other combination leaves the status
// alone and the caller only records the raw provider value.
func ApplyDelivery(current model.Status, providerStatus string) (model.Status, bool) {
	next := model.Status(strings.ToLower(strings.TrimSpace(providerStatus)))

	switch next {
	case "failed", "undelivered":
		if current == model.Sent {
			return model.Failed, true
		}
		return current, false
	}

	curRank, ok := deliveryRank[current]
	if !ok {
		return current, false
	}
	if nextRank, ok := deliveryRank[next]; ok && nextRank > curRank {
		return next, true
	}
	return current, false
}
