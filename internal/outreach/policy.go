// Package outreach decides which leads are due for the next outbound stage and
// which status transitions are allowed along the lead lifecycle.
package outreach

import (
	"time"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

// Policy holds the timing rules of the follow-up sweeps.
type Policy struct {
	FirstFollowUpDelay  time.Duration
	SecondFollowUpDelay time.Duration
	// MinCoolingPeriod is enforced on the second follow-up even for forced runs.
	MinCoolingPeriod time.Duration
	// RecentUpdateGuard skips leads written moments ago. One value covers both
	// follow-up stages.
	RecentUpdateGuard time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		FirstFollowUpDelay:  24 * time.Hour,
		SecondFollowUpDelay: 48 * time.Hour,
		MinCoolingPeriod:    5 * time.Second,
		RecentUpdateGuard:   5 * time.Second,
	}
}

// Reason explains why a lead was not eligible. The empty Reason means eligible.
type Reason string

const (
	Eligible           Reason = ""
	ReasonStatus       Reason = "status not eligible for stage"
	ReasonReplied      Reason = "lead already replied"
	ReasonNeverSent    Reason = "no previous send recorded"
	ReasonTooEarly     Reason = "follow-up delay not elapsed"
	ReasonCooling      Reason = "cooling period not elapsed"
	ReasonRecentUpdate Reason = "updated too recently"
)

// SelectEligible returns the leads due for stage at now, in input order.
func (p Policy) SelectEligible(leads []model.Lead, stage model.Stage, now time.Time, ignoreTimeWindow bool) []model.Lead {
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		if p.Check(l, stage, now, ignoreTimeWindow) == Eligible {
			out = append(out, l)
		}
	}
	return out
}

// Check evaluates the eligibility rules of stage for a single lead.
func (p Policy) Check(l model.Lead, stage model.Stage, now time.Time, ignoreTimeWindow bool) Reason {
	switch stage {
	case model.StageInitial:
		if l.Status != model.NotSent {
			return ReasonStatus
		}
		return Eligible

	case model.StageFirstFollowUp:
		if !inInitialBranch(l.Status) {
			return ReasonStatus
		}
		if l.Replied {
			return ReasonReplied
		}
		if ignoreTimeWindow {
			return Eligible
		}
		if l.LastSentAt == nil {
			return ReasonNeverSent
		}
		if now.Sub(*l.LastSentAt) < p.FirstFollowUpDelay {
			return ReasonTooEarly
		}
		return Eligible

	case model.StageSecondFollowUp:
		if l.Status != model.FollowUpSent {
			return ReasonStatus
		}
		if l.Replied {
			return ReasonReplied
		}
		if l.LastSentAt == nil {
			return ReasonNeverSent
		}
		sinceSend := now.Sub(*l.LastSentAt)
		if sinceSend < p.MinCoolingPeriod {
			return ReasonCooling
		}
		if !ignoreTimeWindow && sinceSend < p.SecondFollowUpDelay {
			return ReasonTooEarly
		}
		if now.Sub(l.UpdatedAt) <= p.RecentUpdateGuard {
			return ReasonRecentUpdate
		}
		return Eligible
	}
	return ReasonStatus
}

// RecentlyUpdated reports whether a follow-up send must be skipped because the
// lead was written within the guard window. The initial stage is not guarded.
func (p Policy) RecentlyUpdated(l model.Lead, stage model.Stage, now time.Time) bool {
	if stage == model.StageInitial {
		return false
	}
	return now.Sub(l.UpdatedAt) < p.RecentUpdateGuard
}

// LastSentBefore is the cutoff a store query can use to prefilter follow-up
// candidates. ok is false when no cutoff applies.
func (p Policy) LastSentBefore(stage model.Stage, now time.Time, ignoreTimeWindow bool) (cutoff time.Time, ok bool) {
	switch stage {
	case model.StageFirstFollowUp:
		if ignoreTimeWindow {
			return time.Time{}, false
		}
		return now.Add(-p.FirstFollowUpDelay), true
	case model.StageSecondFollowUp:
		d := p.SecondFollowUpDelay
		if ignoreTimeWindow || p.MinCoolingPeriod > d {
			d = p.MinCoolingPeriod
		}
		return now.Add(-d), true
	}
	return time.Time{}, false
}
