package service

import (
	"errors"
	"fmt"

	"github.com/LeventeLantos/lead-outreach/internal/repo"
)

var (
	ErrNoLeads         = errors.New("no leads found for the given ids")
	ErrInvalidStage    = errors.New("invalid stage")
	ErrContentTooLong  = errors.New("message content too long")
	ErrNotAwaitingSend = errors.New("lead is not awaiting an auto-reply")
)

// LeadNotFoundError is returned when a provider event references a phone or
// message id no lead is known by.
type LeadNotFoundError struct {
	Phone      string
	MessageSID string
}

func (e *LeadNotFoundError) Error() string {
	if e.MessageSID != "" {
		return fmt.Sprintf("no lead for message sid %q", e.MessageSID)
	}
	return fmt.Sprintf("no lead with phone %q", e.Phone)
}

func (e *LeadNotFoundError) Unwrap() error { return repo.ErrLeadNotFound }
