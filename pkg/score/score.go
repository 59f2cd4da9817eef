// Package score grades a finished rehearsal transcript with Gemini and
// returns structured feedback.
package score

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mockmate/mockmate/pkg/live/session"
)

const defaultModel = "gemini-2.0-flash"

// Evaluation is the structured verdict for one rehearsal.
type Evaluation struct {
	// OverallScore is 1 (poor) to 10 (outstanding).
	OverallScore   int      `json:"overall_score"`
	Communication  int      `json:"communication"`
	TechnicalDepth int      `json:"technical_depth"`
	Structure      int      `json:"structure"`
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	Summary        string   `json:"summary"`
}

// Scorer evaluates transcripts via the Gemini API.
type Scorer struct {
	client *genai.Client
	model  string
}

// NewScorer creates a scorer. model may be empty to use the default.
func NewScorer(ctx context.Context, apiKey, model string) (*Scorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Scorer{client: client, model: model}, nil
}

// Evaluate grades the transcript of one rehearsal.
func (s *Scorer) Evaluate(ctx context.Context, cfg session.Config, turns []session.ConversationTurn, elapsed string) (*Evaluation, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("transcript is empty")
	}

	prompt := buildPrompt(cfg, turns, elapsed)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate evaluation: %w", err)
	}
	return parseEvaluation(resp.Text())
}

// buildPrompt renders the grading instruction plus the labeled transcript.
func buildPrompt(cfg session.Config, turns []session.ConversationTurn, elapsed string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are grading a mock interview for a %s %s position", cfg.Seniority, strings.TrimSpace(cfg.Role))
	if company := strings.TrimSpace(cfg.Company); company != "" {
		fmt.Fprintf(&b, " at %s", company)
	}
	fmt.Fprintf(&b, ". The session lasted %s.\n\n", elapsed)
	b.WriteString("Score the candidate 1-10 overall and on communication, technical_depth, and structure. ")
	b.WriteString("List concrete strengths and improvements, and write a two-sentence summary. ")
	b.WriteString("Respond with a single JSON object with keys: overall_score, communication, technical_depth, structure, strengths, improvements, summary.\n\n")
	b.WriteString("Transcript:\n")
	for _, turn := range turns {
		label := "Candidate"
		if turn.Speaker == "agent" {
			label = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Text)
	}
	return b.String()
}

// parseEvaluation decodes the model's JSON, tolerating markdown fences.
func parseEvaluation(text string) (*Evaluation, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(text), &eval); err != nil {
		return nil, fmt.Errorf("parse evaluation: %w", err)
	}
	if eval.OverallScore < 1 || eval.OverallScore > 10 {
		return nil, fmt.Errorf("overall score %d out of range", eval.OverallScore)
	}
	return &eval, nil
}
