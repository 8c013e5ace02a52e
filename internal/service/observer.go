package service

import "github.com/LeventeLantos/lead-outreach/internal/model"

type SendOutcome string

const (
	OutcomeSent    SendOutcome = "sent"
	OutcomeFailed  SendOutcome = "failed"
	OutcomeSkipped SendOutcome = "skipped"
)

// Observer receives counters from the send and reply paths.
type Observer interface {
	SendAttempt(stage string, outcome SendOutcome)
	ReplyClassified(category model.Category)
}

type nopObserver struct{}

func (nopObserver) SendAttempt(string, SendOutcome) {}
func (nopObserver) ReplyClassified(model.Category) {}
