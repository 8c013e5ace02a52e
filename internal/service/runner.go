package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/lead-outreach/internal/cache"
	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/outreach"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
	"github.com/LeventeLantos/lead-outreach/internal/templates"
)

// maxCASAttempts bounds re-read and retry loops on conditional updates.
const maxCASAttempts = 3

type RunRequest struct {
	Stage model.Stage `json:"stage"`
	// Message replaces the catalog template when set.
	Message string   `json:"message,omitempty"`
	LeadIDs []string `json:"leadIds,omitempty"`
	// Force ignores the follow-up delays. Cooling and recent-update guards still apply.
	Force bool `json:"force,omitempty"`
}

type RunResult struct {
	Selected int `json:"selected"`
	Success  int `json:"success"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type Runner struct {
	leads     repo.LeadRepository
	sender    *Sender
	templates *templates.Store
	policy    outreach.Policy

	leases   cache.Leases
	leaseTTL time.Duration
	sent     cache.SentIndex
	workers  int
	now      func() time.Time
	log      *zap.Logger
	obs      Observer
}

type RunnerOption func(*Runner)

// WithLeases holds a per-lead lease around each send.
func WithLeases(l cache.Leases, ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		r.leases = l
		r.leaseTTL = ttl
	}
}

// WithSentIndex records every provider message id for delivery callbacks.
func WithSentIndex(idx cache.SentIndex) RunnerOption {
	return func(r *Runner) { r.sent = idx }
}

// WithWorkers processes up to n leads in parallel. One means sequential.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func WithLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.obs = o
		}
	}
}

func NewRunner(leads repo.LeadRepository, sender *Sender, tmpl *templates.Store, policy outreach.Policy, opts ...RunnerOption) *Runner {
	r := &Runner{
		leads:     leads,
		sender:    sender,
		templates: tmpl,
		policy:    policy,
		leaseTTL:  2 * time.Minute,
		workers:   1,
		now:       time.Now,
		log:       zap.NewNop(),
		obs:       nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Policy() outreach.Policy { return r.policy }

// Run selects the leads of a campaign and sends to each of them. Individual
// lead failures are counted, only a store outage fails the call.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if _, ok := model.ParseStage(string(req.Stage)); !ok {
		return RunResult{}, fmt.Errorf("%w: %q", ErrInvalidStage, req.Stage)
	}

	leads, err := r.Candidates(ctx, req)
	if err != nil {
		return RunResult{}, err
	}
	return r.Process(ctx, req, leads)
}

// Candidates returns the leads a run would target. Explicit ids bypass the
// time windows; each lead is still re-checked when processed.
func (r *Runner) Candidates(ctx context.Context, req RunRequest) ([]model.Lead, error) {
	if len(req.LeadIDs) > 0 {
		leads, err := r.leads.GetByIDs(ctx, req.LeadIDs)
		if err != nil {
			return nil, fmt.Errorf("load leads: %w", err)
		}
		if len(leads) == 0 {
			return nil, ErrNoLeads
		}
		return leads, nil
	}

	now := r.now()
	f := repo.LeadFilter{Statuses: outreach.StatusesForStage(req.Stage)}
	if req.Stage != model.StageInitial {
		notReplied := false
		f.Replied = &notReplied
	}
	if cutoff, ok := r.policy.LastSentBefore(req.Stage, now, req.Force); ok {
		f.LastSentBefore = cutoff
	}

	leads, err := r.leads.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return r.policy.SelectEligible(leads, req.Stage, now, req.Force), nil
}

type leadOutcome int

const (
	leadSent leadOutcome = iota
	leadSkipped
	leadFailed
	leadStoreError
)

// Process sends the stage message to each lead of a snapshot.
func (r *Runner) Process(ctx context.Context, req RunRequest, leads []model.Lead) (RunResult, error) {
	res := RunResult{Selected: len(leads)}
	if len(leads) == 0 {
		return res, nil
	}

	var (
		mu        sync.Mutex
		storeErrs int
		lastErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, l := range leads {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := r.processLead(gctx, req, l)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case leadSent:
				res.Success++
			case leadSkipped:
				res.Skipped++
			case leadFailed:
				res.Failed++
			case leadStoreError:
				res.Failed++
				storeErrs++
				lastErr = err
			}
			return nil
		})
	}
	_ = g.Wait()

	r.log.Info("campaign run finished",
		zap.String("stage", string(req.Stage)),
		zap.Int("selected", res.Selected),
		zap.Int("success", res.Success),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)

	if storeErrs > 0 && storeErrs == len(leads) {
		return res, fmt.Errorf("lead store unavailable: %w", lastErr)
	}
	return res, ctx.Err()
}

func (r *Runner) processLead(ctx context.Context, req RunRequest, snapshot model.Lead) (leadOutcome, error) {
	stage := req.Stage
	log := r.log.With(zap.String("lead_id", snapshot.ID), zap.String("stage", string(stage)))

	skip := func(reason string) (leadOutcome, error) {
		log.Info("lead skipped", zap.String("reason", reason))
		r.obs.SendAttempt(string(stage), OutcomeSkipped)
		return leadSkipped, nil
	}

	if r.leases != nil {
		lease, err := r.leases.Acquire(ctx, "lead:"+snapshot.ID, r.leaseTTL)
		switch {
		case errors.Is(err, cache.ErrLeaseHeld):
			return skip("lease held by another run")
		case err != nil:
			log.Warn("lease unavailable, relying on conditional update", zap.Error(err))
		default:
			defer func() { _ = lease.Release(context.WithoutCancel(ctx)) }()
		}
	}

	lead, err := r.leads.Get(ctx, snapshot.ID)
	if errors.Is(err, repo.ErrLeadNotFound) {
		return skip("lead no longer exists")
	}
	if err != nil {
		log.Error("load lead", zap.Error(err))
		return leadStoreError, err
	}

	now := r.now()
	if !outreach.CanStart(stage, lead.Status) {
		return skip(fmt.Sprintf("%s (status %s)", outreach.ReasonStatus, lead.Status))
	}
	if stage != model.StageInitial && lead.Replied {
		return skip(string(outreach.ReasonReplied))
	}
	if r.policy.RecentlyUpdated(lead, stage, now) {
		return skip(string(outreach.ReasonRecentUpdate))
	}

	msg := r.compose(req, lead)

	lead, err = r.leads.Transition(ctx, lead.ID, lead.Status, lead.Version, repo.Update{Status: stage.ProcessingStatus()})
	if errors.Is(err, repo.ErrStaleLead) {
		return skip("lead changed by a concurrent writer")
	}
	if err != nil {
		log.Error("mark processing", zap.Error(err))
		return leadStoreError, err
	}

	// From here on the send runs to completion even if the run is cancelled.
	ctx = context.WithoutCancel(ctx)

	sid, sendErr := r.sender.Send(ctx, lead.Phone, msg.Body)
	if sendErr != nil {
		reason := sendErr.Error()
		log.Warn("send failed", zap.Error(sendErr))
		if _, err := r.leads.Transition(ctx, lead.ID, lead.Status, lead.Version, repo.Update{
			Status:    model.Failed,
			LastError: &reason,
		}); err != nil {
			log.Error("mark failed", zap.Error(err))
		}
		r.obs.SendAttempt(string(stage), OutcomeFailed)
		return leadFailed, nil
	}

	sentAt := r.now()
	_, err = r.leads.Transition(ctx, lead.ID, lead.Status, lead.Version, repo.Update{
		Status:       stage.SentStatus(),
		LastSentAt:   &sentAt,
		TemplateUsed: &msg.TemplateID,
		MessageSID:   &sid,
		ClearError:   true,
	})
	switch {
	case errors.Is(err, repo.ErrStaleLead):
		log.Warn("lead changed while sending, keeping newer state", zap.String("sid", sid))
	case err != nil:
		log.Error("mark sent", zap.String("sid", sid), zap.Error(err))
	}

	r.indexSent(ctx, sid, lead.ID, sentAt, log)
	r.obs.SendAttempt(string(stage), OutcomeSent)
	log.Info("message sent", zap.String("sid", sid), zap.String("template", msg.TemplateID))
	return leadSent, nil
}

func (r *Runner) compose(req RunRequest, lead model.Lead) templates.Message {
	if req.Message != "" {
		return r.templates.Custom(req.Message, lead)
	}
	return r.templates.Compose(req.Stage.Category(), lead)
}

func (r *Runner) indexSent(ctx context.Context, sid, leadID string, sentAt time.Time, log *zap.Logger) {
	if r.sent == nil {
		return
	}
	if err := r.sent.StoreSent(ctx, sid, leadID, sentAt); err != nil {
		log.Warn("index sent message", zap.String("sid", sid), zap.Error(err))
	}
}

// SendReply sends the auto-reply for category to a lead that just replied and
// moves it to replied_to. On transport failure the lead stays replied and the
// error is recorded.
func (r *Runner) SendReply(ctx context.Context, lead model.Lead, category model.Category) (model.Lead, templates.Message, error) {
	if lead.Status != model.Replied {
		return lead, templates.Message{}, fmt.Errorf("%w: status %s", ErrNotAwaitingSend, lead.Status)
	}
	log := r.log.With(zap.String("lead_id", lead.ID), zap.String("category", string(category)))

	msg := r.templates.Compose(category, lead)
	ctx = context.WithoutCancel(ctx)

	sid, err := r.sender.Send(ctx, lead.Phone, msg.Body)
	if err != nil {
		reason := err.Error()
		log.Warn("auto-reply failed", zap.Error(err))
		if updated, perr := r.leads.Transition(ctx, lead.ID, lead.Status, lead.Version, repo.Update{LastError: &reason}); perr == nil {
			lead = updated
		}
		r.obs.SendAttempt("reply", OutcomeFailed)
		return lead, msg, err
	}

	sentAt := r.now()
	updated, err := r.leads.Transition(ctx, lead.ID, lead.Status, lead.Version, repo.Update{
		Status:       model.RepliedTo,
		LastSentAt:   &sentAt,
		TemplateUsed: &msg.TemplateID,
		MessageSID:   &sid,
		ClearError:   true,
	})
	r.indexSent(ctx, sid, lead.ID, sentAt, log)
	r.obs.SendAttempt("reply", OutcomeSent)

	switch {
	case errors.Is(err, repo.ErrStaleLead):
		// a newer reply arrived meanwhile and will be answered on its own
		log.Info("lead changed while replying", zap.String("sid", sid))
		return lead, msg, nil
	case err != nil:
		return lead, msg, fmt.Errorf("mark replied_to: %w", err)
	}

	log.Info("auto-reply sent", zap.String("sid", sid), zap.String("template", msg.TemplateID))
	return updated, msg, nil
}

// updateWithRetry applies build to the freshest copy of lead until the
// conditional update sticks. build returning false stops without writing.
func (r *Runner) updateWithRetry(ctx context.Context, lead model.Lead, build func(model.Lead) (repo.Update, bool)) (model.Lead, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		u, ok := build(lead)
		if !ok {
			return lead, nil
		}
		updated, err := r.leads.Transition(ctx, lead.ID, lead.Status, lead.Version, u)
		if !errors.Is(err, repo.ErrStaleLead) {
			return updated, err
		}
		if lead, err = r.leads.Get(ctx, lead.ID); err != nil {
			return model.Lead{}, err
		}
	}
	return model.Lead{}, repo.ErrStaleLead
}
