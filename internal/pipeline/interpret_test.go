package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"portfolio-backend/internal/insights"
	"portfolio-backend/internal/llm"
)

func TestInsightFromInterpretation(t *testing.T) {
	t.Run("empty text falls back to parser defaults", func(t *testing.T) {
		got, missing, err := InsightFromInterpretation(llm.Interpretation{Text: "  \n"})
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if got.Summary != insights.Defaults.Summary || got.RiskLevel != insights.RiskModerate {
			t.Fatalf("unexpected insight %+v", got)
		}
		if len(missing) == 0 {
			t.Fatalf("expected every field reported as defaulted")
		}
	})

	t.Run("text goes through the parser", func(t *testing.T) {
		got, missing, err := InsightFromInterpretation(llm.Interpretation{Text: "current value: 5,000\nrisk: high"})
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if got.CurrentValue != 5000 || got.RiskLevel != insights.RiskHigh {
			t.Fatalf("unexpected insight %+v", got)
		}
		if len(missing) == 0 {
			t.Fatalf("expected defaulted fields")
		}
	})

	t.Run("invalid structured output", func(t *testing.T) {
		_, _, err := InsightFromInterpretation(llm.Interpretation{Structured: json.RawMessage(`{"riskLevel":42}`)})
		if !errors.Is(err, insights.ErrInvalidStructured) {
			t.Fatalf("expected ErrInvalidStructured, got %v", err)
		}
	})
}
