package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/lead-outreach/internal/cache"
	"github.com/LeventeLantos/lead-outreach/internal/classifier"
	"github.com/LeventeLantos/lead-outreach/internal/client"
	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
	"github.com/LeventeLantos/lead-outreach/internal/service"
)

// contacted inserts a lead and runs the initial campaign for it.
func contacted(t *testing.T, e *env, phone string) model.Lead {
	t.Helper()
	l := e.insert(t, "Jane", phone)
	res, err := e.runner.Run(context.Background(), service.RunRequest{Stage: model.StageInitial, LeadIDs: []string{l.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)
	e.clock.Advance(time.Minute)
	return e.get(t, l.ID)
}

func TestReplyHandler_SalaryQuestionGetsAutoReply(t *testing.T) {
	obs := newCountingObserver()
	e := newEnv(t, service.WithObserver(obs))
	h := service.NewReplyHandler(e.repo, e.runner, classifier.New())
	ctx := context.Background()

	l := contacted(t, e, "+15551234567")

	out, err := h.Handle(ctx, service.Event{From: "whatsapp:+15551234567", Body: "How much will I be paid?"})
	require.NoError(t, err)

	assert.Equal(t, service.KindReply, out.Kind)
	assert.Equal(t, l.ID, out.LeadID)
	require.NotNil(t, out.Classification)
	assert.Equal(t, model.CategorySalaryQuestion, out.Classification.Category)
	assert.True(t, out.AutoReplySent)
	assert.Empty(t, out.ReplyError)
	assert.Equal(t, model.RepliedTo, out.Status)
	assert.True(t, strings.HasPrefix(out.TemplateID, "salary_question_"), out.TemplateID)

	got := e.get(t, l.ID)
	assert.Equal(t, model.RepliedTo, got.Status)
	assert.True(t, got.Replied)
	require.NotNil(t, got.LastReplyText)
	assert.Equal(t, "How much will I be paid?", *got.LastReplyText)
	require.NotNil(t, got.LastReplyAt)
	assert.True(t, got.LastReplyAt.Equal(e.clock.Now()))
	require.NotNil(t, got.TemplateUsed)
	assert.Equal(t, out.TemplateID, *got.TemplateUsed)
	require.NotNil(t, got.MessageSID)
	assert.Equal(t, "SM002", *got.MessageSID)

	sent := e.transport.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "+15551234567", sent[1].Phone)
	assert.Equal(t, 1, obs.categories[model.CategorySalaryQuestion])
	assert.Equal(t, 1, obs.sends["reply/sent"])

	// replied leads never get follow-ups
	e.clock.Advance(72 * time.Hour)
	for _, stage := range []model.Stage{model.StageFirstFollowUp, model.StageSecondFollowUp} {
		res, err := e.runner.Run(ctx, service.RunRequest{Stage: stage})
		require.NoError(t, err)
		assert.Zero(t, res.Selected, stage)
	}
}

func TestReplyHandler_AddressWithoutPlus(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)

	l := contacted(t, e, "+15551234567")

	out, err := h.Handle(context.Background(), service.Event{From: "whatsapp:15551234567", Body: "yes please"})
	require.NoError(t, err)
	assert.Equal(t, l.ID, out.LeadID)
	assert.True(t, out.AutoReplySent)
}

func TestReplyHandler_UnknownPhone(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)

	_, err := h.Handle(context.Background(), service.Event{From: "whatsapp:+10000000000", Body: "hello"})

	var nf *service.LeadNotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "+10000000000", nf.Phone)
	assert.ErrorIs(t, err, repo.ErrLeadNotFound)
	assert.Empty(t, e.transport.Sent())
}

func TestReplyHandler_AutoReplyFailureKeepsReply(t *testing.T) {
	obs := newCountingObserver()
	e := newEnv(t, service.WithObserver(obs))
	h := service.NewReplyHandler(e.repo, e.runner, nil)

	l := contacted(t, e, "+15551234567")
	e.transport.SetFail(&client.TransportError{StatusCode: 503, Message: "unavailable"})

	out, err := h.Handle(context.Background(), service.Event{From: "whatsapp:+15551234567", Body: "When can I start?"})
	require.NoError(t, err)
	assert.False(t, out.AutoReplySent)
	assert.NotEmpty(t, out.ReplyError)
	assert.Equal(t, model.Replied, out.Status)

	got := e.get(t, l.ID)
	assert.Equal(t, model.Replied, got.Status)
	assert.True(t, got.Replied)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "unavailable")
	assert.Equal(t, 1, obs.sends["reply/failed"])
}

func TestReplyHandler_DeliveryStatusMovesForward(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)
	ctx := context.Background()

	l := contacted(t, e, "+15551234567")
	require.Equal(t, "SM001", *l.MessageSID)

	steps := []struct {
		report string
		want   model.Status
	}{
		{"delivered", model.Delivered},
		{"sent", model.Delivered},
		{"read", model.Read},
		{"delivered", model.Read},
		{"failed", model.Read},
	}
	for _, s := range steps {
		out, err := h.Handle(ctx, service.Event{Status: s.report, MessageSID: "SM001"})
		require.NoError(t, err, s.report)
		assert.Equal(t, service.KindStatus, out.Kind)
		assert.Equal(t, s.want, out.Status, s.report)

		got := e.get(t, l.ID)
		assert.Equal(t, s.want, got.Status, s.report)
		require.NotNil(t, got.DeliveryStatus)
		assert.Equal(t, s.report, *got.DeliveryStatus)
	}
}

func TestReplyHandler_UndeliveredMarksFailed(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)

	l := contacted(t, e, "+15551234567")

	out, err := h.Handle(context.Background(), service.Event{Status: "Undelivered", MessageSID: "SM001"})
	require.NoError(t, err)
	assert.Equal(t, model.Failed, out.Status)

	got := e.get(t, l.ID)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "delivery undelivered", *got.LastError)
}

type mapIndex struct {
	mu   sync.Mutex
	recs map[string]cache.SentRecord
}

func (m *mapIndex) StoreSent(_ context.Context, sid, leadID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]cache.SentRecord{}
	}
	m.recs[sid] = cache.SentRecord{LeadID: leadID, SentAt: sentAt}
	return nil
}

func (m *mapIndex) LookupSent(_ context.Context, sid string) (cache.SentRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[sid]
	return rec, ok, nil
}

func TestReplyHandler_ReportForOlderMessageIgnored(t *testing.T) {
	e := newEnv(t, service.WithSentIndex(&mapIndex{}))
	h := service.NewReplyHandler(e.repo, e.runner, nil)
	ctx := context.Background()

	l := contacted(t, e, "+15551234567")
	e.clock.Advance(time.Hour)
	res, err := e.runner.Run(ctx, service.RunRequest{Stage: model.StageFirstFollowUp, Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)

	// SM001 still resolves through the index but is no longer current
	out, err := h.Handle(ctx, service.Event{Status: "failed", MessageSID: "SM001"})
	require.NoError(t, err)
	assert.Equal(t, l.ID, out.LeadID)
	assert.Equal(t, model.FollowUpSent, out.Status)

	got := e.get(t, l.ID)
	assert.Equal(t, model.FollowUpSent, got.Status)
	assert.Nil(t, got.DeliveryStatus)
}

func TestReplyHandler_DeliveryAfterAutoReply(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)
	ctx := context.Background()

	l := contacted(t, e, "+15551234567")
	_, err := h.Handle(ctx, service.Event{From: "whatsapp:+15551234567", Body: "Is a visa included?"})
	require.NoError(t, err)

	out, err := h.Handle(ctx, service.Event{Status: "read", MessageSID: "SM002"})
	require.NoError(t, err)
	assert.Equal(t, model.RepliedTo, out.Status)

	got := e.get(t, l.ID)
	require.NotNil(t, got.DeliveryStatus)
	assert.Equal(t, "read", *got.DeliveryStatus)
}

func TestReplyHandler_UnknownSID(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)

	_, err := h.Handle(context.Background(), service.Event{Status: "delivered", MessageSID: "SM999"})

	var nf *service.LeadNotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "SM999", nf.MessageSID)
}

func TestReplyHandler_IgnoresEmptyEvents(t *testing.T) {
	e := newEnv(t)
	h := service.NewReplyHandler(e.repo, e.runner, nil)

	out, err := h.Handle(context.Background(), service.Event{From: "whatsapp:+15551234567", Body: "   "})
	require.NoError(t, err)
	assert.Equal(t, service.KindIgnored, out.Kind)
}

func TestReplyHandler_SentIndexLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	idx := cache.NewRedisCache(rdb, time.Hour)
	e := newEnv(t, service.WithSentIndex(idx))
	h := service.NewReplyHandler(e.repo, e.runner, nil)
	ctx := context.Background()

	l := contacted(t, e, "+15551234567")

	rec, ok, err := idx.LookupSent(ctx, "SM001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, l.ID, rec.LeadID)

	out, err := h.Handle(ctx, service.Event{Status: "delivered", MessageSID: "SM001"})
	require.NoError(t, err)
	assert.Equal(t, model.Delivered, out.Status)

	// the store is the fallback once the index entry is gone
	mr.FlushAll()
	out, err = h.Handle(ctx, service.Event{Status: "read", MessageSID: "SM001"})
	require.NoError(t, err)
	assert.Equal(t, model.Read, out.Status)
}

func TestPhoneFromAddress(t *testing.T) {
	cases := map[string]string{
		"whatsapp:+15551234567": "+15551234567",
		"whatsapp:15551234567":  "+15551234567",
		" +15551234567 ":        "+15551234567",
		"":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, service.PhoneFromAddress(in), in)
	}
}
