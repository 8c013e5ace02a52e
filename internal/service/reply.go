package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/LeventeLantos/lead-outreach/internal/classifier"
	"github.com/LeventeLantos/lead-outreach/internal/client"
	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/outreach"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
)

// Event is an inbound provider callback. A non-empty Body marks an inbound
// message, otherwise Status is a delivery report for MessageSID.
type Event struct {
	From       string `json:"from"`
	Body       string `json:"body,omitempty"`
	Status     string `json:"status,omitempty"`
	MessageSID string `json:"messageSid,omitempty"`
}

type OutcomeKind string

const (
	KindReply   OutcomeKind = "reply"
	KindStatus  OutcomeKind = "status"
	KindIgnored OutcomeKind = "ignored"
)

type Outcome struct {
	Kind           OutcomeKind        `json:"kind"`
	LeadID         string             `json:"leadId,omitempty"`
	Status         model.Status       `json:"status,omitempty"`
	Classification *classifier.Result `json:"classification,omitempty"`
	TemplateID     string             `json:"templateId,omitempty"`
	AutoReplySent  bool               `json:"autoReplySent"`
	ReplyError     string             `json:"replyError,omitempty"`
}

type ReplyHandler struct {
	leads      repo.LeadRepository
	runner     *Runner
	classifier *classifier.Classifier
	log        *zap.Logger
}

// NewReplyHandler shares the runner's clock, logger, observer and sent index.
func NewReplyHandler(leads repo.LeadRepository, runner *Runner, cls *classifier.Classifier) *ReplyHandler {
	if cls == nil {
		cls = classifier.New()
	}
	return &ReplyHandler{
		leads:      leads,
		runner:     runner,
		classifier: cls,
		log:        runner.log.With(zap.String("component", "reply_handler")),
	}
}

// PhoneFromAddress strips the channel prefix from a provider address.
func PhoneFromAddress(from string) string {
	p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(from), client.ChannelPrefix))
	if p != "" && !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	return p
}

func (h *ReplyHandler) Handle(ctx context.Context, ev Event) (Outcome, error) {
	switch {
	case strings.TrimSpace(ev.Body) != "":
		return h.handleReply(ctx, ev)
	case strings.TrimSpace(ev.Status) != "":
		return h.handleStatus(ctx, ev)
	}
	h.log.Debug("event without body or status ignored", zap.String("sid", ev.MessageSID))
	return Outcome{Kind: KindIgnored}, nil
}

func (h *ReplyHandler) handleReply(ctx context.Context, ev Event) (Outcome, error) {
	phone := PhoneFromAddress(ev.From)
	lead, err := h.leads.GetByPhone(ctx, phone)
	if errors.Is(err, repo.ErrLeadNotFound) {
		h.log.Warn("reply from unknown phone dropped", zap.String("phone", phone))
		return Outcome{Kind: KindReply}, &LeadNotFoundError{Phone: phone}
	}
	if err != nil {
		return Outcome{Kind: KindReply}, err
	}

	now := h.runner.now()
	replied := true
	body := ev.Body
	lead, err = h.runner.updateWithRetry(ctx, lead, func(model.Lead) (repo.Update, bool) {
		return repo.Update{
			Status:        model.Replied,
			Replied:       &replied,
			LastReplyAt:   &now,
			LastReplyText: &body,
		}, true
	})
	if err != nil {
		return Outcome{Kind: KindReply}, err
	}

	res := h.classifier.Classify(body)
	h.runner.obs.ReplyClassified(res.Category)
	h.log.Info("reply classified",
		zap.String("lead_id", lead.ID),
		zap.String("category", string(res.Category)),
		zap.Int("confidence", res.Confidence),
		zap.Strings("keywords", res.MatchedKeywords),
	)

	out := Outcome{Kind: KindReply, LeadID: lead.ID, Classification: &res}

	lead, msg, err := h.runner.SendReply(ctx, lead, res.Category)
	out.Status = lead.Status
	out.TemplateID = msg.TemplateID
	if err != nil {
		// The reply itself is recorded, only the auto-reply failed.
		out.ReplyError = err.Error()
		return out, nil
	}
	out.AutoReplySent = true
	return out, nil
}

func (h *ReplyHandler) handleStatus(ctx context.Context, ev Event) (Outcome, error) {
	sid := strings.TrimSpace(ev.MessageSID)
	raw := strings.ToLower(strings.TrimSpace(ev.Status))

	lead, err := h.lookupBySID(ctx, sid)
	if err != nil {
		return Outcome{Kind: KindStatus}, err
	}
	log := h.log.With(zap.String("lead_id", lead.ID), zap.String("sid", sid))

	if lead.MessageSID == nil || *lead.MessageSID != sid {
		log.Debug("delivery report for an older message ignored", zap.String("status", raw))
		return Outcome{Kind: KindStatus, LeadID: lead.ID, Status: lead.Status}, nil
	}

	lead, err = h.runner.updateWithRetry(ctx, lead, func(cur model.Lead) (repo.Update, bool) {
		if cur.MessageSID == nil || *cur.MessageSID != sid {
			return repo.Update{}, false
		}
		// raw is kept verbatim; status only advances along sent, delivered, read
		u := repo.Update{DeliveryStatus: &raw}
		if next, ok := outreach.ApplyDelivery(cur.Status, raw); ok {
			u.Status = next
			if next == model.Failed {
				reason := "delivery " + raw
				u.LastError = &reason
			}
		}
		return u, true
	})
	if err != nil {
		return Outcome{Kind: KindStatus}, err
	}

	log.Info("delivery status recorded", zap.String("status", raw), zap.String("lead_status", string(lead.Status)))
	return Outcome{Kind: KindStatus, LeadID: lead.ID, Status: lead.Status}, nil
}

func (h *ReplyHandler) lookupBySID(ctx context.Context, sid string) (model.Lead, error) {
	notFound := &LeadNotFoundError{MessageSID: sid}
	if sid == "" {
		return model.Lead{}, notFound
	}

	if idx := h.runner.sent; idx != nil {
		rec, ok, err := idx.LookupSent(ctx, sid)
		if err != nil {
			h.log.Warn("sent index lookup failed", zap.String("sid", sid), zap.Error(err))
		}
		if ok {
			lead, err := h.leads.Get(ctx, rec.LeadID)
			if err == nil {
				return lead, nil
			}
			if !errors.Is(err, repo.ErrLeadNotFound) {
				return model.Lead{}, err
			}
		}
	}

	lead, err := h.leads.GetByMessageSID(ctx, sid)
	if errors.Is(err, repo.ErrLeadNotFound) {
		h.log.Warn("delivery report for unknown message dropped", zap.String("sid", sid))
		return model.Lead{}, notFound
	}
	return lead, err
}
