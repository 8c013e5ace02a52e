package repo

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

var (
	ErrLeadNotFound   = errors.New("lead not found")
	ErrStaleLead      = errors.New("lead changed since it was read")
	ErrDuplicatePhone = errors.New("lead with this phone already exists")
)

type LeadRepository interface {
	Insert(ctx context.Context, nl model.NewLead) (model.Lead, error)
	Get(ctx context.Context, id string) (model.Lead, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Lead, error)
	GetByPhone(ctx context.Context, phone string) (model.Lead, error)
	GetByMessageSID(ctx context.Context, sid string) (model.Lead, error)
	List(ctx context.Context, f LeadFilter) ([]model.Lead, error)
	// Transition applies u only if the lead still has status from and version.
	// It returns ErrStaleLead when another writer got there first.
	Transition(ctx context.Context, id string, from model.Status, version int64, u Update) (model.Lead, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}

type LeadFilter struct {
	Statuses []model.Status
	Replied  *bool
	// LastSentBefore keeps leads whose last send is at or before the cutoff.
	// Leads never sent are dropped when it is set.
	LastSentBefore time.Time
	Limit          int
	Offset         int
}

// Update lists the columns written by a transition. Nil fields are left as is.
type Update struct {
	Status         model.Status
	Replied        *bool
	LastSentAt     *time.Time
	LastReplyAt    *time.Time
	LastReplyText  *string
	TemplateUsed   *string
	MessageSID     *string
	DeliveryStatus *string
	LastError      *string
	// ClearError resets last_error. It is ignored when LastError is set.
	ClearError bool
}

type Stats struct {
	Total    int                  `json:"total"`
	Replied  int                  `json:"replied"`
	ByStatus map[model.Status]int `json:"by_status"`
}
