package effector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/internal/moderation/model"
)

type fakeActions struct {
	reported, removed bool
	replies           []string
	sticky            []bool
}

func (f *fakeActions) ReportToModqueue(context.Context, string, string) error {
	f.reported = true
	return nil
}

func (f *fakeActions) Remove(context.Context, string, string) error {
	f.removed = true
	return nil
}

func (f *fakeActions) Reply(_ context.Context, _ string, body string, sticky bool) error {
	f.replies = append(f.replies, body)
	f.sticky = append(f.sticky, sticky)
	return nil
}

func newEffector(actions Actions) *Effector {
	return New(actions, logging.New("test", "info", "json"))
}

func TestApply_ApproveIsNoOp(t *testing.T) {
	actions := &fakeActions{}
	e := newEffector(actions)
	err := e.Apply(context.Background(), model.Decision{Action: model.ActionApprove}, model.Subject{}, model.Settings{})
	require.NoError(t, err)
	assert.False(t, actions.reported)
	assert.False(t, actions.removed)
}

func TestApply_FlagReportsToModqueue(t *testing.T) {
	actions := &fakeActions{}
	e := newEffector(actions)
	err := e.Apply(context.Background(), model.Decision{Action: model.ActionFlag, Reason: "spam"}, model.Subject{}, model.Settings{})
	require.NoError(t, err)
	assert.True(t, actions.reported)
}

func TestApply_RemoveAppliesTemplatedReply(t *testing.T) {
	actions := &fakeActions{}
	e := newEffector(actions)
	settings := model.Settings{Templates: model.Templates{RemoveTemplate: "Removed: {{reason}}"}}
	err := e.Apply(context.Background(), model.Decision{Action: model.ActionRemove, Reason: "spam phrase"}, model.Subject{}, settings)
	require.NoError(t, err)
	assert.True(t, actions.removed)
	require.Len(t, actions.replies, 1)
	assert.Equal(t, "Removed: spam phrase", actions.replies[0])
	assert.False(t, actions.sticky[0])
}

func TestApply_RemoveWithoutTemplateSkipsReply(t *testing.T) {
	actions := &fakeActions{}
	e := newEffector(actions)
	err := e.Apply(context.Background(), model.Decision{Action: model.ActionRemove, Reason: "spam"}, model.Subject{}, model.Settings{})
	require.NoError(t, err)
	assert.True(t, actions.removed)
	assert.Empty(t, actions.replies)
}

func TestApply_CommentPostsStickyReply(t *testing.T) {
	actions := &fakeActions{}
	e := newEffector(actions)
	settings := model.Settings{Templates: model.Templates{CommentTemplate: "Note: {{reason}}"}}
	err := e.Apply(context.Background(), model.Decision{Action: model.ActionComment, Reason: "low effort"}, model.Subject{}, settings)
	require.NoError(t, err)
	require.Len(t, actions.replies, 1)
	assert.Equal(t, "Note: low effort", actions.replies[0])
	assert.True(t, actions.sticky[0])
}

func TestApply_DryRunNeverActs(t *testing.T) {
	actions := &fakeActions{}
	e := newEffector(actions)
	settings := model.Settings{DryRun: model.DryRun{Enabled: true, LogDetails: true}}
	err := e.Apply(context.Background(), model.Decision{Action: model.ActionRemove, Reason: "spam"}, model.Subject{}, settings)
	require.NoError(t, err)
	assert.False(t, actions.removed)
	assert.Empty(t, actions.replies)
}
