package revision

import (
	"context"
	"fmt"
	"strings"
)

// QuestionCount is the number of recall questions generated per note.
const QuestionCount = 3

// Revision is the AI-generated study material for a note.
type Revision struct {
	Summary   string
	Questions []string // exactly QuestionCount entries
}

// Validator judges whether a learner still understands a note's content.
// Both operations may fail (timeout, malformed output, unavailable backend);
// callers are expected to fall back to FallbackRevision / FallbackAccept and
// must never treat a failure as fatal to the note operation.
type Validator interface {
	// Summarize produces a short summary and recall questions for a note.
	Summarize(ctx context.Context, title, content string) (*Revision, error)

	// Validate reports whether the answer demonstrates understanding of the
	// note content with respect to the question asked.
	Validate(ctx context.Context, question, answer, content string) (bool, error)
}

// FallbackRevision synthesizes generic study material from the note title.
// Used whenever Summarize fails, so a note is never archived without
// questions to revive it with.
func FallbackRevision(title string) *Revision {
	return &Revision{
		Summary: fmt.Sprintf("Summary for %q: this note contains information that should be reviewed regularly to keep it in active memory.", title),
		Questions: []string{
			fmt.Sprintf("What are the main concepts covered in %q?", title),
			fmt.Sprintf("How can you apply the knowledge from %q in practice?", title),
			fmt.Sprintf("What additional information would strengthen your understanding of %q?", title),
		},
	}
}

// FallbackAccept is the deterministic answer judgment used when the external
// judge is unavailable: accept iff the trimmed answer is longer than 10
// characters. Deliberately permissive — the benefit of the doubt goes to
// the learner, not the outage.
func FallbackAccept(answer string) bool {
	return len([]rune(strings.TrimSpace(answer))) > 10
}

// Fallback is a Validator that always uses the deterministic rules.
// Used when no LLM provider is configured, and as a test double.
type Fallback struct{}

func (Fallback) Summarize(ctx context.Context, title, content string) (*Revision, error) {
	return FallbackRevision(title), nil
}

func (Fallback) Validate(ctx context.Context, question, answer, content string) (bool, error) {
	return FallbackAccept(answer), nil
}
