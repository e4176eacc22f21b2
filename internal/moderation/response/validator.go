// Package response implements the Response Validator: a schema check over
// raw LLM JSON output that fails closed on any malformed answer.
package response

import (
	"encoding/json"
	"fmt"

	"github.com/modsentinel/automod/internal/moderation/model"
)

// rawAnswer mirrors the wire shape of one AIAnswer, used to distinguish
// "field absent" from "field present but invalid" during validation.
type rawAnswer struct {
	QuestionID                    *string  `json:"questionId"`
	Answer                        *string  `json:"answer"`
	Confidence                    *int     `json:"confidence"`
	Reasoning                     *string  `json:"reasoning"`
	EvidencePieces                []string `json:"evidencePieces,omitempty"`
	FalsePositivePatternsDetected []string `json:"falsePositivePatternsDetected,omitempty"`
	NegationDetected              *bool    `json:"negationDetected,omitempty"`
}

type rawBatch struct {
	Answers []rawAnswer `json:"answers"`
}

// Validate parses raw LLM JSON output and validates it against the
// AIAnswer batch schema: every expected question id must appear exactly
// once, confidence must be in [0,100], and answer must be YES/NO.
// On any failure the call is treated as a provider failure (§4.5/§4.6).
func Validate(raw string, expectedQuestionIDs []string) ([]model.AIAnswer, error) {
	var batch rawBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, fmt.Errorf("malformed AI response JSON: %w", err)
	}

	seen := make(map[string]bool, len(batch.Answers))
	answers := make([]model.AIAnswer, 0, len(batch.Answers))

	for i, a := range batch.Answers {
		if a.QuestionID == nil || *a.QuestionID == "" {
			return nil, fmt.Errorf("answer %d missing questionId", i)
		}
		if a.Answer == nil || (*a.Answer != "YES" && *a.Answer != "NO") {
			return nil, fmt.Errorf("answer %q: answer must be YES or NO", *a.QuestionID)
		}
		if a.Confidence == nil || *a.Confidence < 0 || *a.Confidence > 100 {
			return nil, fmt.Errorf("answer %q: confidence must be in [0,100]", *a.QuestionID)
		}
		if a.Reasoning == nil {
			return nil, fmt.Errorf("answer %q: missing reasoning", *a.QuestionID)
		}
		if seen[*a.QuestionID] {
			return nil, fmt.Errorf("duplicate answer for question %q", *a.QuestionID)
		}
		seen[*a.QuestionID] = true

		answer := model.AIAnswer{
			QuestionID:                    *a.QuestionID,
			Answer:                        *a.Answer,
			Confidence:                    *a.Confidence,
			Reasoning:                     *a.Reasoning,
			EvidencePieces:                a.EvidencePieces,
			FalsePositivePatternsDetected: a.FalsePositivePatternsDetected,
		}
		if a.NegationDetected != nil {
			answer.NegationDetected = *a.NegationDetected
		}
		answers = append(answers, answer)
	}

	for _, id := range expectedQuestionIDs {
		if !seen[id] {
			return nil, fmt.Errorf("missing answer for required question %q", id)
		}
	}

	return answers, nil
}

// HasCompleteAnswers reports whether answers contains a structurally valid
// (YES/NO, confidence in [0,100], non-empty questionId) answer for every id
// in expectedQuestionIDs. Duplicate ids are not rejected: the last answer
// for an id is the one checked. It is used to validate a
// cached AIBatchResult before trusting it: a structurally-valid-but-stale
// cache entry that is missing an answer for the current question set must
// be treated as a cache miss rather than served as a hit.
func HasCompleteAnswers(answers []model.AIAnswer, expectedQuestionIDs []string) bool {
	byID := make(map[string]model.AIAnswer, len(answers))
	for _, a := range answers {
		if a.QuestionID == "" {
			return false
		}
		byID[a.QuestionID] = a
	}
	for _, id := range expectedQuestionIDs {
		a, ok := byID[id]
		if !ok {
			return false
		}
		if a.Answer != "YES" && a.Answer != "NO" {
			return false
		}
		if a.Confidence < 0 || a.Confidence > 100 {
			return false
		}
	}
	return true
}
