package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = VideoRef{VideoID: "v1", PlaylistID: "PL1", Title: "Quicksort", ChannelTitle: "CS101"}

func questionsJSON(n, options int, index int) string {
	qs := make([]map[string]any, n)
	for i := range qs {
		opts := make([]string, options)
		for j := range opts {
			opts[j] = fmt.Sprintf("option %d", j)
		}
		qs[i] = map[string]any{
			"question":      fmt.Sprintf("Question %d?", i),
			"options":       opts,
			"correct_index": index,
			"explanation":   "because",
		}
	}
	b, _ := json.Marshal(map[string]any{"questions": qs})
	return string(b)
}

func TestParseQuestions(t *testing.T) {
	v := validator.New()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: questionsJSON(10, 4, 2)},
		{name: "fenced", raw: "```json\n" + questionsJSON(10, 4, 0) + "\n```"},
		{name: "preamble", raw: "Here you go: " + questionsJSON(10, 4, 3)},
		{name: "three options", raw: questionsJSON(10, 3, 0), wantErr: true},
		{name: "nine questions", raw: questionsJSON(9, 4, 0), wantErr: true},
		{name: "index out of range", raw: questionsJSON(10, 4, 4), wantErr: true},
		{name: "not json", raw: "I cannot help with that", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := parseQuestions(v, tt.raw)
			if tt.wantErr {
				var merr *MalformedResponseError
				require.ErrorAs(t, err, &merr)
				return
			}
			require.NoError(t, err)
			require.Len(t, qs, 10)
			for _, q := range qs {
				assert.Len(t, q.Options, 4)
				assert.GreaterOrEqual(t, q.CorrectAnswerIndex, 0)
				assert.LessOrEqual(t, q.CorrectAnswerIndex, 3)
			}
		})
	}
}

func TestParseQuestions_AcceptsCorrectAnswerAlias(t *testing.T) {
	raw := strings.ReplaceAll(questionsJSON(10, 4, 1), `"correct_index"`, `"correctAnswer"`)
	qs, err := parseQuestions(validator.New(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, qs[0].CorrectAnswerIndex)
}

func TestParseNotes(t *testing.T) {
	v := validator.New()

	t.Run("defaults and clamping", func(t *testing.T) {
		takeaways := make([]string, 14)
		for i := range takeaways {
			takeaways[i] = fmt.Sprintf("point %d", i)
		}
		b, _ := json.Marshal(map[string]any{
			"keyTakeaways":   takeaways,
			"concepts":       []map[string]string{{"term": "pivot", "meaning": "split point"}},
			"formulaOrLogic": map[string]string{
				"formula":   "T(n) = 2T(n/2) + n",
				"structure": "split, recurse, combine",
				"condition": "input fits in memory",
				"whenToUse": "average-case fast in-place sorting",
			},
			"summary":        "Divide and conquer sort.",
		})

		notes, err := parseNotes(v, string(b), testRef)
		require.NoError(t, err)
		assert.Equal(t, "Quicksort", notes.Topic)
		assert.Equal(t, "CS101", notes.Source)
		assert.Len(t, notes.KeyTakeaways, 10)
		assert.Equal(t, "v1", notes.VideoID)
		assert.Equal(t, "PL1", notes.PlaylistID)
		require.NotNil(t, notes.FormulaOrLogic)
		assert.Equal(t, "T(n) = 2T(n/2) + n", notes.FormulaOrLogic.Formula)
		assert.Equal(t, "split, recurse, combine", notes.FormulaOrLogic.Structure)
		assert.Equal(t, "input fits in memory", notes.FormulaOrLogic.Condition)
		assert.Equal(t, "average-case fast in-place sorting", notes.FormulaOrLogic.WhenToUse)
	})

	t.Run("empty takeaways", func(t *testing.T) {
		_, err := parseNotes(v, `{"topic":"x","keyTakeaways":[],"summary":"s"}`, testRef)
		var merr *MalformedResponseError
		require.ErrorAs(t, err, &merr)
		assert.Contains(t, merr.Reason, "KeyTakeaways")
	})

	t.Run("missing summary", func(t *testing.T) {
		_, err := parseNotes(v, `{"keyTakeaways":["a"]}`, testRef)
		var merr *MalformedResponseError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("concept without meaning", func(t *testing.T) {
		_, err := parseNotes(v, `{"keyTakeaways":["a"],"summary":"s","concepts":[{"term":"t"}]}`, testRef)
		var merr *MalformedResponseError
		assert.ErrorAs(t, err, &merr)
	})
}

func TestBuildPrompts_SourceFallbacks(t *testing.T) {
	p := buildTestPrompt(testRef, VideoContent{Kind: "transcript", Text: "we pick a pivot"})
	assert.Contains(t, p, "---TRANSCRIPT START---")
	assert.Contains(t, p, "we pick a pivot")
	assert.Contains(t, p, "exactly 10 multiple choice questions")

	p = buildNotesPrompt(testRef, VideoContent{Kind: "description", Text: "course description"})
	assert.Contains(t, p, "---DESCRIPTION START---")

	p = buildNotesPrompt(testRef, VideoContent{Kind: "title"})
	assert.Contains(t, p, `Work ONLY from the title "Quicksort" and channel "CS101"`)
}
