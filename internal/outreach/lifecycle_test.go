package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

func TestCanStart(t *testing.T) {
	assert.True(t, CanStart(model.StageInitial, model.NotSent))
	assert.True(t, CanStart(model.StageInitial, model.Failed))
	assert.False(t, CanStart(model.StageInitial, model.Processing))

	for _, s := range []model.Status{model.Sent, model.Delivered, model.Read} {
		assert.True(t, CanStart(model.StageFirstFollowUp, s), s)
		assert.False(t, CanStart(model.StageSecondFollowUp, s), s)
	}
	assert.False(t, CanStart(model.StageFirstFollowUp, model.FollowUpProcessing))
	assert.True(t, CanStart(model.StageSecondFollowUp, model.FollowUpSent))
	assert.False(t, CanStart(model.StageSecondFollowUp, model.Replied))
}

func TestStatusesForStage(t *testing.T) {
	assert.Equal(t, []model.Status{model.NotSent}, StatusesForStage(model.StageInitial))
	assert.Equal(t, []model.Status{model.FollowUpSent}, StatusesForStage(model.StageSecondFollowUp))

	got := StatusesForStage(model.StageFirstFollowUp)
	got[0] = "mutated"
	assert.Equal(t, model.Sent, Entry[model.StageFirstFollowUp][0])
}

func TestApplyDelivery(t *testing.T) {
	cases := []struct {
		current  model.Status
		provider string
		want     model.Status
		applied  bool
	}{
		{model.Sent, "delivered", model.Delivered, true},
		{model.Sent, "READ", model.Read, true},
		{model.Delivered, "read", model.Read, true},
		{model.Read, "delivered", model.Read, false},
		{model.Delivered, "sent", model.Delivered, false},
		{model.Sent, "queued", model.Sent, false},
		{model.Sent, "undelivered", model.Failed, true},
		{model.Delivered, "failed", model.Delivered, false},
		{model.FollowUpSent, "delivered", model.FollowUpSent, false},
		{model.Replied, "read", model.Replied, false},
		{model.RepliedTo, "delivered", model.RepliedTo, false},
	}
	for _, tc := range cases {
		got, applied := ApplyDelivery(tc.current, tc.provider)
		assert.Equal(t, tc.want, got, "%s + %s", tc.current, tc.provider)
		assert.Equal(t, tc.applied, applied, "%s + %s", tc.current, tc.provider)
	}
}
