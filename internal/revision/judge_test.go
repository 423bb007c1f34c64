package revision

import (
	"context"
	"strings"
	"testing"

	"github.com/lazypower/freshnote/internal/llm"
)

func TestJudgeValidate(t *testing.T) {
	cases := []struct {
		name    string
		reply   string
		want    bool
		wantErr bool
	}{
		{"valid", "VALID", true, false},
		{"invalid", "INVALID", false, false},
		{"lowercase", "valid", true, false},
		{"chatty valid", "The answer is VALID.", true, false},
		{"chatty invalid", "I would say this is INVALID because it misses the point.", false, false},
		{"unrecognized", "maybe?", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &llm.MockClient{Response: &llm.Response{Content: tc.reply}}
			j := NewJudge(mock)

			got, err := j.Validate(context.Background(), "q", "a", "content")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got != tc.want {
				t.Errorf("Validate(%q) = %v, want %v", tc.reply, got, tc.want)
			}
		})
	}
}

func TestJudgeValidatePromptContents(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "VALID"}}
	j := NewJudge(mock)

	j.Validate(context.Background(), "the question", "the answer", "the content")

	if len(mock.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(mock.Calls))
	}
	prompt := mock.Calls[0]
	for _, needle := range []string{"the question", "the answer", "the content"} {
		if !strings.Contains(prompt, needle) {
			t.Errorf("prompt missing %q", needle)
		}
	}
}

func TestJudgeSummarize(t *testing.T) {
	reply := `{"summary": "Two sentences about the topic.", "questions": ["q1", "q2", "q3"]}`
	mock := &llm.MockClient{Response: &llm.Response{Content: reply}}
	j := NewJudge(mock)

	rev, err := j.Summarize(context.Background(), "title", "content")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if rev.Summary != "Two sentences about the topic." {
		t.Errorf("summary = %q", rev.Summary)
	}
	if len(rev.Questions) != QuestionCount {
		t.Errorf("got %d questions, want %d", len(rev.Questions), QuestionCount)
	}
}

func TestParseRevisionResponse(t *testing.T) {
	good := `{"summary": "s", "questions": ["a", "b", "c"]}`

	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"bare json", good, false},
		{"code fence", "```json\n" + good + "\n```", false},
		{"wrapper text", "Here is the result:\n" + good + "\nHope that helps!", false},
		{"extra questions truncated", `{"summary": "s", "questions": ["a", "b", "c", "d"]}`, false},
		{"too few questions", `{"summary": "s", "questions": ["a"]}`, true},
		{"empty summary", `{"summary": "", "questions": ["a", "b", "c"]}`, true},
		{"no json at all", "I cannot help with that.", true},
		{"malformed json", `{"summary": "s", "questions": [`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rev, err := parseRevisionResponse(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRevisionResponse: %v", err)
			}
			if len(rev.Questions) != QuestionCount {
				t.Errorf("got %d questions, want %d", len(rev.Questions), QuestionCount)
			}
		})
	}
}
