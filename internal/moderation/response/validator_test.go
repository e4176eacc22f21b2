package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_HappyPath(t *testing.T) {
	raw := `{"answers":[{"questionId":"q1","answer":"YES","confidence":90,"reasoning":"matches pattern"}]}`
	answers, err := Validate(raw, []string{"q1"})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "q1", answers[0].QuestionID)
	assert.Equal(t, "YES", answers[0].Answer)
	assert.Equal(t, 90, answers[0].Confidence)
}

func TestValidate_MalformedJSON(t *testing.T) {
	_, err := Validate(`not json`, nil)
	assert.Error(t, err)
}

func TestValidate_MissingQuestionID(t *testing.T) {
	raw := `{"answers":[{"answer":"YES","confidence":50,"reasoning":"x"}]}`
	_, err := Validate(raw, nil)
	assert.Error(t, err)
}

func TestValidate_InvalidAnswerValue(t *testing.T) {
	raw := `{"answers":[{"questionId":"q1","answer":"MAYBE","confidence":50,"reasoning":"x"}]}`
	_, err := Validate(raw, nil)
	assert.ErrorContains(t, err, "YES or NO")
}

func TestValidate_ConfidenceOutOfRange(t *testing.T) {
	raw := `{"answers":[{"questionId":"q1","answer":"YES","confidence":150,"reasoning":"x"}]}`
	_, err := Validate(raw, nil)
	assert.ErrorContains(t, err, "confidence")
}

func TestValidate_MissingReasoning(t *testing.T) {
	raw := `{"answers":[{"questionId":"q1","answer":"YES","confidence":50}]}`
	_, err := Validate(raw, nil)
	assert.ErrorContains(t, err, "reasoning")
}

func TestValidate_DuplicateQuestionID(t *testing.T) {
	raw := `{"answers":[
		{"questionId":"q1","answer":"YES","confidence":50,"reasoning":"a"},
		{"questionId":"q1","answer":"NO","confidence":60,"reasoning":"b"}
	]}`
	_, err := Validate(raw, nil)
	assert.ErrorContains(t, err, "duplicate")
}

func TestValidate_MissingRequiredQuestion(t *testing.T) {
	raw := `{"answers":[{"questionId":"q1","answer":"YES","confidence":50,"reasoning":"a"}]}`
	_, err := Validate(raw, []string{"q1", "q2"})
	assert.ErrorContains(t, err, `"q2"`)
}

func TestValidate_OptionalEvidenceFieldsPassThrough(t *testing.T) {
	raw := `{"answers":[{"questionId":"q1","answer":"YES","confidence":80,"reasoning":"x",
		"evidencePieces":["line 1"],"falsePositivePatternsDetected":["sarcasm"],"negationDetected":true}]}`
	answers, err := Validate(raw, []string{"q1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"line 1"}, answers[0].EvidencePieces)
	assert.Equal(t, []string{"sarcasm"}, answers[0].FalsePositivePatternsDetected)
	assert.True(t, answers[0].NegationDetected)
}
