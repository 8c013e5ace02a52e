package model

import "time"

type Status string

const (
	NotSent                  Status = "not_sent"
	Processing               Status = "processing"
	Sent                     Status = "sent"
	Delivered                Status = "delivered"
	Read                     Status = "read"
	FollowUpProcessing       Status = "follow_up_processing"
	FollowUpSent             Status = "follow_up_sent"
	SecondFollowUpProcessing Status = "second_follow_up_processing"
	SecondFollowUpSent       Status = "second_follow_up_sent"
	Replied                  Status = "replied"
	RepliedTo                Status = "replied_to"
	Failed                   Status = "failed"
)

// IsReplied reports whether the status belongs to the replied class. Leads in
// this class are never scheduled again.
func (s Status) IsReplied() bool {
	return s == Replied || s == RepliedTo
}

// IsProcessing reports whether a send is in flight for the lead.
func (s Status) IsProcessing() bool {
	switch s {
	case Processing, FollowUpProcessing, SecondFollowUpProcessing:
		return true
	}
	return false
}

type Lead struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Interest string `json:"interest,omitempty"`
	Email    string `json:"email,omitempty"`

	Status  Status `json:"status"`
	Replied bool   `json:"replied"`

	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
	LastReplyAt    *time.Time `json:"last_reply_at,omitempty"`
	LastReplyText  *string    `json:"last_reply_text,omitempty"`
	TemplateUsed   *string    `json:"template_used,omitempty"`
	MessageSID     *string    `json:"message_sid,omitempty"`
	DeliveryStatus *string    `json:"delivery_status,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`

	// Version is bumped on every write and guards conditional updates.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLead carries the fields needed to create a lead. Everything else starts
// from the lifecycle defaults.
type NewLead struct {
	Name     string
	Phone    string
	Interest string
	Email    string
}
