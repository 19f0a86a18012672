package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFromContent(t *testing.T) {
	cases := []struct {
		name       string
		content    string
		structured bool
	}{
		{name: "plain text", content: "Portfolio summary: fine", structured: false},
		{name: "json object", content: ` {"summary":"x"} `, structured: true},
		{name: "fenced json", content: "```json\n{\"summary\":\"x\"}\n```", structured: true},
		{name: "broken json", content: `{"summary":`, structured: false},
		{name: "json array", content: `["a"]`, structured: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromContent(tc.content)
			if got.IsStructured() != tc.structured {
				t.Fatalf("structured = %v, want %v (%+v)", got.IsStructured(), tc.structured, got)
			}
			if !tc.structured && got.Text == "" {
				t.Fatalf("expected text to be kept")
			}
		})
	}
}

func TestUserMessageTruncates(t *testing.T) {
	msg := UserMessage(strings.Repeat("a", MaxInputChars+100))
	if !strings.HasPrefix(msg, "Analyze this mutual fund portfolio data:") {
		t.Fatalf("unexpected prefix: %q", msg[:40])
	}
	if got := strings.Count(msg, "a"); got < MaxInputChars || got > MaxInputChars+10 {
		t.Fatalf("expected truncation to about %d chars, got %d", MaxInputChars, got)
	}
}

func TestTaskDescriptionListsSections(t *testing.T) {
	desc := strings.ToLower(TaskDescription())
	for _, section := range []string{"portfolio summary", "current value", "annual return", "risk", "number of assets", "equity", "recommendations"} {
		if !strings.Contains(desc, section) {
			t.Fatalf("task description missing %q", section)
		}
	}
	if len(PromptHash()) != 12 {
		t.Fatalf("unexpected prompt hash %q", PromptHash())
	}
}

func TestShouldRetry(t *testing.T) {
	cases := map[string]bool{
		"azure openai http status 500: boom":   true,
		"azure openai http status 429: slow":   true,
		"read: connection reset by peer":       true,
		"azure openai http status 401: denied": false,
		"invalid character 'x' in json":        false,
	}
	for msg, want := range cases {
		if got := ShouldRetry(errors.New(msg)); got != want {
			t.Fatalf("ShouldRetry(%q) = %v, want %v", msg, got, want)
		}
	}
	if !ShouldRetry(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should retry")
	}
	if ShouldRetry(context.Canceled) {
		t.Fatalf("canceled should not retry")
	}
}
