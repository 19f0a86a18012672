package llm

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"strings"
)

//go:embed prompts/portfolio_v1.txt
var taskDescription string

// PromptVersion identifies the embedded task description.
const PromptVersion = "portfolio_v1"

// MaxInputChars bounds the document text sent to a provider.
const MaxInputChars = 60000

// TaskDescription returns the fixed system prompt for portfolio analysis.
func TaskDescription() string {
	return strings.TrimSpace(taskDescription)
}

// UserMessage wraps extracted document text, truncating it to MaxInputChars runes.
func UserMessage(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > MaxInputChars {
		runes = runes[:MaxInputChars]
	}
	return "Analyze this mutual fund portfolio data:\n\n" + string(runes)
}

// PromptHash is a short digest of the task description, logged with each call.
func PromptHash() string {
	sum := sha256.Sum256([]byte(TaskDescription()))
	return hex.EncodeToString(sum[:])[:12]
}
