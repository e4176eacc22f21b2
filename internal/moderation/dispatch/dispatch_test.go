package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/provider"
)

type fakeProvider struct {
	rawJSON string
	err     error
}

func (f *fakeProvider) Type() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }
func (f *fakeProvider) Analyze(context.Context, provider.AnalyzeRequest) (provider.AnalyzeResponse, error) {
	if f.err != nil {
		return provider.AnalyzeResponse{}, f.err
	}
	return provider.AnalyzeResponse{RawJSON: f.rawJSON, InputTokens: 100, OutputTokens: 50, LatencyMS: 42}, nil
}
func (f *fakeProvider) HealthCheck(context.Context) error    { return nil }
func (f *fakeProvider) CalculateCostUSD(in, out int) float64 { return float64(in+out) * 0.00001 }

func TestBuildPrompt_ScrubsPIIAndIncludesSections(t *testing.T) {
	d := New()
	profile := model.UserProfile{UserID: "u1", Username: "alice", AccountAgeDays: 10}
	history := model.PostHistory{Items: []model.HistoryItem{{Type: model.ContentTypePost, Subreddit: "golang", Content: "contact me at a@b.com"}}}
	subject := model.Subject{Title: "hello", Body: "visit https://spam.example.com now"}
	questions := []model.AIQuestion{{ID: "q1", Question: "is this spam?"}}

	result := d.BuildPrompt(profile, history, subject, questions)

	assert.Contains(t, result.Prompt, "## User Profile")
	assert.Contains(t, result.Prompt, "## Questions")
	assert.Contains(t, result.Prompt, "q1")
	assert.NotContains(t, result.Prompt, "a@b.com")
	assert.NotContains(t, result.Prompt, "spam.example.com")
	assert.Greater(t, result.RemovedCounts["Email"]+result.RemovedCounts["URL"], 0)
}

func TestBuildPrompt_EmptyHistoryRendersPlaceholder(t *testing.T) {
	d := New()
	profile := model.UserProfile{UserID: "u1", Username: "alice"}
	subject := model.Subject{Title: "hello", Body: "world"}
	questions := []model.AIQuestion{{ID: "q1", Question: "is this spam?"}}

	result := d.BuildPrompt(profile, model.PostHistory{}, subject, questions)

	assert.Contains(t, result.Prompt, "(No post history available)")
}

func TestDispatch_HappyPath(t *testing.T) {
	d := New()
	p := &fakeProvider{rawJSON: `{"answers":[{"questionId":"q1","answer":"YES","confidence":80,"reasoning":"matched"}]}`}

	batch, err := d.Dispatch(context.Background(), p, model.UserProfile{UserID: "u1"}, model.PostHistory{}, model.Subject{}, []model.AIQuestion{{ID: "q1", Question: "spam?"}})
	require.NoError(t, err)
	assert.Equal(t, "fake", batch.Provider)
	assert.Len(t, batch.Answers, 1)
	assert.Equal(t, "q1", batch.Answers[0].QuestionID)
	assert.NotEmpty(t, batch.CorrelationID)
}

func TestDispatch_ProviderErrorPropagates(t *testing.T) {
	d := New()
	p := &fakeProvider{err: assertError("boom")}

	_, err := d.Dispatch(context.Background(), p, model.UserProfile{}, model.PostHistory{}, model.Subject{}, nil)
	require.Error(t, err)
}

func TestDispatch_InvalidResponseFailsClosed(t *testing.T) {
	d := New()
	p := &fakeProvider{rawJSON: `not json`}

	_, err := d.Dispatch(context.Background(), p, model.UserProfile{}, model.PostHistory{}, model.Subject{}, []model.AIQuestion{{ID: "q1"}})
	require.Error(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
