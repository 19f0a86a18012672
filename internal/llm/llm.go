package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Client interprets extracted portfolio text.
type Client interface {
	Interpret(ctx context.Context, text string) (Interpretation, error)
}

// Interpretation is a model response: either free-form analysis text for the
// insight parser, or an already-structured insight document.
type Interpretation struct {
	Text       string
	Structured json.RawMessage
	Provider   string
	Model      string
}

// IsStructured reports whether the response carries a structured insight.
func (i Interpretation) IsStructured() bool {
	return len(i.Structured) > 0
}

// FromContent classifies raw model content. A JSON object (optionally fenced
// in ```json) is treated as structured output; anything else is text.
func FromContent(content string) Interpretation {
	trimmed := strings.TrimSpace(content)
	unfenced := trimmed
	if strings.HasPrefix(unfenced, "```") {
		unfenced = strings.TrimPrefix(unfenced, "```json")
		unfenced = strings.TrimPrefix(unfenced, "```")
		unfenced = strings.TrimSuffix(strings.TrimSpace(unfenced), "```")
		unfenced = strings.TrimSpace(unfenced)
	}
	if strings.HasPrefix(unfenced, "{") && json.Valid([]byte(unfenced)) {
		return Interpretation{Structured: json.RawMessage(unfenced)}
	}
	return Interpretation{Text: trimmed}
}
