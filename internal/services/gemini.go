package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"tubetrack-backend/internal/models"
)

const (
	DefaultGeminiModel = "gemini-1.5-flash"
	maxKeyTakeaways    = 10
)

// VideoRef is what the generator knows about a video before fetching content.
type VideoRef struct {
	VideoID      string
	PlaylistID   string
	Title        string
	ChannelTitle string
}

// ContentSource supplies the text a generation is grounded on.
type ContentSource interface {
	Content(ctx context.Context, videoID string) VideoContent
}

type GeminiConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	ConcurrentRequests int
}

// GeminiGenerator turns a video into notes or a multiple-choice test.
type GeminiGenerator struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	content  ContentSource
	validate *validator.Validate
	rateChan chan struct{} // Token bucket
	log      *zap.Logger
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, content ContentSource, log *zap.Logger) (*GeminiGenerator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"

	slots := cfg.ConcurrentRequests
	if slots < 1 {
		slots = 1
	}
	// Token bucket for rate limiting
	rateChan := make(chan struct{}, slots)
	for i := 0; i < slots; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiGenerator{
		client:   client,
		model:    model,
		content:  content,
		validate: validator.New(),
		rateChan: rateChan,
		log:      log,
	}, nil
}

func (g *GeminiGenerator) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return &RateLimitError{Message: "timeout waiting for Gemini rate slot"}
	}
}

func (g *GeminiGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

// GenerateNotes produces study notes. The returned record carries no
// timestamps or owner; the caller stamps those.
func (g *GeminiGenerator) GenerateNotes(ctx context.Context, ref VideoRef) (models.NotesRecord, error) {
	src := g.content.Content(ctx, ref.VideoID)
	raw, err := g.generate(ctx, buildNotesPrompt(ref, src))
	if err != nil {
		return models.NotesRecord{}, err
	}
	notes, err := parseNotes(g.validate, raw, ref)
	if err != nil {
		g.log.Warn("malformed notes response", zap.String("video_id", ref.VideoID), zap.Error(err))
		return models.NotesRecord{}, err
	}
	return notes, nil
}

// GenerateTest produces exactly ten four-option questions.
func (g *GeminiGenerator) GenerateTest(ctx context.Context, ref VideoRef) ([]models.Question, error) {
	src := g.content.Content(ctx, ref.VideoID)
	raw, err := g.generate(ctx, buildTestPrompt(ref, src))
	if err != nil {
		return nil, err
	}
	questions, err := parseQuestions(g.validate, raw)
	if err != nil {
		g.log.Warn("malformed test response", zap.String("video_id", ref.VideoID), zap.Error(err))
		return nil, err
	}
	return questions, nil
}

func (g *GeminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", &MalformedResponseError{Reason: blocked.Error()}
		}
		return "", &TransientNetworkError{Op: "gemini.generate", Err: err}
	}
	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &MalformedResponseError{Reason: "empty response"}
	}
	return text, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// cleanJSON strips markdown fences and anything around the outermost object.
func cleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

type notesPayload struct {
	Topic          string           `json:"topic"`
	Source         string           `json:"source"`
	KeyTakeaways   []string         `json:"keyTakeaways" validate:"min=1,max=10,dive,required"`
	Concepts       []conceptPayload `json:"concepts" validate:"dive"`
	MustRemember   []string         `json:"mustRemember"`
	FormulaOrLogic *formulaPayload  `json:"formulaOrLogic"`
	Summary        string           `json:"summary" validate:"required"`
}

type formulaPayload struct {
	Formula   string `json:"formula"`
	Structure string `json:"structure"`
	Condition string `json:"condition"`
	WhenToUse string `json:"whenToUse"`
}

type conceptPayload struct {
	Term    string `json:"term" validate:"required"`
	Meaning string `json:"meaning" validate:"required"`
}

type testPayload struct {
	Questions []questionPayload `json:"questions" validate:"len=10,dive"`
}

type questionPayload struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectIndex  *int     `json:"correct_index" validate:"required,min=0,max=3"`
	CorrectAnswer *int     `json:"correctAnswer"`
	Explanation   string   `json:"explanation" validate:"required"`
}

func parseNotes(v *validator.Validate, raw string, ref VideoRef) (models.NotesRecord, error) {
	var p notesPayload
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &p); err != nil {
		return models.NotesRecord{}, &MalformedResponseError{Reason: "notes are not valid JSON: " + err.Error()}
	}

	if len(p.KeyTakeaways) > maxKeyTakeaways {
		p.KeyTakeaways = p.KeyTakeaways[:maxKeyTakeaways]
	}
	if p.Topic == "" {
		p.Topic = ref.Title
	}
	if p.Source == "" {
		p.Source = ref.ChannelTitle
	}
	if err := v.Struct(p); err != nil {
		return models.NotesRecord{}, malformed("notes", err)
	}

	concepts := make([]models.Concept, len(p.Concepts))
	for i, c := range p.Concepts {
		concepts[i] = models.Concept{Term: c.Term, Meaning: c.Meaning}
	}
	var formula *models.FormulaOrLogic
	if f := p.FormulaOrLogic; f != nil {
		formula = &models.FormulaOrLogic{
			Formula:   f.Formula,
			Structure: f.Structure,
			Condition: f.Condition,
			WhenToUse: f.WhenToUse,
		}
	}
	return models.NotesRecord{
		VideoID:        ref.VideoID,
		PlaylistID:     ref.PlaylistID,
		Topic:          p.Topic,
		Source:         p.Source,
		KeyTakeaways:   p.KeyTakeaways,
		Concepts:       concepts,
		MustRemember:   p.MustRemember,
		FormulaOrLogic: formula,
		Summary:        p.Summary,
	}, nil
}

func parseQuestions(v *validator.Validate, raw string) ([]models.Question, error) {
	var p testPayload
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &p); err != nil {
		return nil, &MalformedResponseError{Reason: "test is not valid JSON: " + err.Error()}
	}
	for i := range p.Questions {
		if p.Questions[i].CorrectIndex == nil {
			p.Questions[i].CorrectIndex = p.Questions[i].CorrectAnswer
		}
	}
	if err := v.Struct(p); err != nil {
		return nil, malformed("test", err)
	}

	out := make([]models.Question, len(p.Questions))
	for i, q := range p.Questions {
		out[i] = models.Question{
			Question:           q.Question,
			Options:            q.Options,
			CorrectAnswerIndex: *q.CorrectIndex,
			Explanation:        q.Explanation,
		}
	}
	return out, nil
}

func malformed(what string, err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &MalformedResponseError{Reason: fmt.Sprintf("%s: %s failed %q", what, fe.Namespace(), fe.Tag())}
	}
	return &MalformedResponseError{Reason: what + ": " + err.Error()}
}

func writeSource(b *strings.Builder, ref VideoRef, src VideoContent) {
	switch src.Kind {
	case "transcript":
		b.WriteString("\n---TRANSCRIPT START---\n")
		b.WriteString(src.Text)
		b.WriteString("\n---TRANSCRIPT END---\n")
	case "description":
		b.WriteString("\nTranscript unavailable. Using the video description as source.\n")
		b.WriteString("---DESCRIPTION START---\n")
		b.WriteString(src.Text)
		b.WriteString("\n---DESCRIPTION END---\n")
	default:
		b.WriteString(fmt.Sprintf("\nNo transcript or description available. Work ONLY from the title %q", ref.Title))
		if ref.ChannelTitle != "" {
			b.WriteString(fmt.Sprintf(" and channel %q", ref.ChannelTitle))
		}
		b.WriteString(". If the topic is clear, cover its foundations.\n")
	}
}

func buildNotesPrompt(ref VideoRef, src VideoContent) string {
	var b strings.Builder

	b.WriteString("Generate student revision notes for this YouTube video.\n\n")
	b.WriteString(fmt.Sprintf("VIDEO TITLE: %s\n", ref.Title))
	b.WriteString(fmt.Sprintf("INSTRUCTOR/CHANNEL: %s\n\n", ref.ChannelTitle))
	b.WriteString("You are a serious student who just watched this video and are making revision notes.\n")
	b.WriteString("Write in student-friendly language (not AI/textbook style).\n")
	b.WriteString("Keep points concise and focus on logic and memory triggers.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n")
	b.WriteString(`
JSON schema:
{"topic": "string", "source": "string", "keyTakeaways": ["5-10 strings"], "concepts": [{"term": "string", "meaning": "string"}], "mustRemember": ["string"], "formulaOrLogic": {"formula": "string", "structure": "string", "condition": "string", "whenToUse": "string"}, "summary": "3-4 line string"}
`)
	writeSource(&b, ref, src)

	return b.String()
}

func buildTestPrompt(ref VideoRef, src VideoContent) string {
	var b strings.Builder

	b.WriteString("You are an expert academic evaluator.\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d multiple choice questions that test conceptual understanding of the video %q", models.QuestionsPerTest, ref.Title))
	if ref.ChannelTitle != "" {
		b.WriteString(fmt.Sprintf(" by %q", ref.ChannelTitle))
	}
	b.WriteString(".\n\n")
	b.WriteString(`Rules:
- Difficulty: Medium
- Avoid trivial fact recall
- Each question must have exactly 4 options
- Only 1 correct answer per question
- Mix conceptual and application-based questions

CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.

JSON schema:
{"questions": [{"question": "string", "options": ["A", "B", "C", "D"], "correct_index": 0, "explanation": "string"}]}
`)
	writeSource(&b, ref, src)

	return b.String()
}
