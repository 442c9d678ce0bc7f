package models

import "time"

const (
	QuestionsPerTest   = 10
	OptionsPerQuestion = 4
)

type Question struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	Explanation        string   `json:"explanation"`
}

// TestRecord holds a generated question set and, once submitted, its score.
type TestRecord struct {
	VideoID          string     `json:"video_id"`
	PlaylistID       string     `json:"playlist_id"`
	UserID           string     `json:"user_id"`
	Questions        []Question `json:"questions"`
	Score            *int       `json:"score"`
	UserAnswers      []int      `json:"user_answers"`
	PerformanceLevel *string    `json:"performance_level"`
	CreatedAt        time.Time  `json:"created_at"`
}

type TestResult struct {
	VideoID          string    `json:"video_id"`
	PlaylistID       string    `json:"playlist_id"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	UserAnswers      []int     `json:"user_answers"`
	PerformanceLevel string    `json:"performance_level"`
	CreatedAt        time.Time `json:"created_at"`
}

// Result reports the graded outcome, or false while the test is ungraded.
func (t TestRecord) Result() (TestResult, bool) {
	if t.Score == nil {
		return TestResult{}, false
	}
	level := PerformanceLevel(*t.Score)
	if t.PerformanceLevel != nil {
		level = *t.PerformanceLevel
	}
	return TestResult{
		VideoID:          t.VideoID,
		PlaylistID:       t.PlaylistID,
		Score:            *t.Score,
		TotalQuestions:   len(t.Questions),
		UserAnswers:      t.UserAnswers,
		PerformanceLevel: level,
		CreatedAt:        t.CreatedAt,
	}, true
}

func PerformanceLevel(score int) string {
	switch {
	case score >= 8:
		return "Excellent"
	case score >= 5:
		return "Good"
	default:
		return "Needs Improvement"
	}
}

// Grade counts answers matching the correct option. Unanswered slots count as wrong.
func Grade(questions []Question, answers []int) int {
	score := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectAnswerIndex {
			score++
		}
	}
	return score
}
