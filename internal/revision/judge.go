package revision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lazypower/freshnote/internal/llm"
)

// Judge implements Validator on top of an LLM provider.
type Judge struct {
	client llm.Client
}

// NewJudge creates a Judge backed by the given LLM client.
func NewJudge(client llm.Client) *Judge {
	return &Judge{client: client}
}

// Summarize asks the model for a two-sentence summary and three recall
// questions, as strict JSON.
func (j *Judge) Summarize(ctx context.Context, title, content string) (*Revision, error) {
	resp, err := j.client.Complete(ctx, summarizePrompt(title, content))
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	rev, err := parseRevisionResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return rev, nil
}

// Validate asks the model for a VALID/INVALID verdict on the answer.
func (j *Judge) Validate(ctx context.Context, question, answer, content string) (bool, error) {
	resp, err := j.client.Complete(ctx, validatePrompt(question, answer, content))
	if err != nil {
		return false, fmt.Errorf("validate: %w", err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	// INVALID contains VALID as a substring, so check it first.
	switch {
	case strings.Contains(verdict, "INVALID"):
		return false, nil
	case strings.Contains(verdict, "VALID"):
		return true, nil
	}
	return false, fmt.Errorf("validate: unrecognized verdict %q", resp.Content)
}

func summarizePrompt(title, content string) string {
	return fmt.Sprintf(`You are a memory retention expert. Analyze this note and return EXACTLY the following JSON structure.

Note Title: %s
Note Content: %s

Return ONLY valid JSON in this exact format:
{
  "summary": "A clear 2-sentence summary of the main concepts",
  "questions": [
    "Specific question about key concepts from the content",
    "Question about practical applications or examples",
    "Question about connections to other topics or deeper understanding"
  ]
}

Make the questions specific to the actual content, not generic.`, title, content)
}

func validatePrompt(question, answer, content string) string {
	return fmt.Sprintf(`Evaluate if this answer shows good understanding of the note content.

Original Note Content: %s
Question Asked: %s
User's Answer: %s

Respond with ONLY one word: "VALID" if the answer demonstrates understanding of the content, or "INVALID" if it doesn't.
Be generous - if the answer shows any reasonable engagement with the topic, respond VALID.`, content, question, answer)
}

// parseRevisionResponse extracts the revision JSON object from the model
// response. The response might contain markdown code fences or other
// wrapper text.
func parseRevisionResponse(content string) (*Revision, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var parsed struct {
		Summary   string   `json:"summary"`
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal revision: %w", err)
	}

	if parsed.Summary == "" {
		return nil, fmt.Errorf("empty summary in response")
	}
	if len(parsed.Questions) < QuestionCount {
		return nil, fmt.Errorf("got %d questions, want %d", len(parsed.Questions), QuestionCount)
	}

	return &Revision{
		Summary:   parsed.Summary,
		Questions: parsed.Questions[:QuestionCount],
	}, nil
}
