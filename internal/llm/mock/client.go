package mock

import (
	"context"
	"encoding/json"
	"strings"

	"portfolio-backend/internal/insights"
	"portfolio-backend/internal/llm"
)

// Client is an offline llm.Client. With Text set it returns that text for the
// insight parser; otherwise it returns a fixed balanced-portfolio insight.
type Client struct {
	Text string
	Err  error
}

// SampleInsight is the fixed insight returned when no text is configured.
func SampleInsight() insights.Insight {
	return insights.Insight{
		Summary:      "This is a balanced portfolio with a mix of equity and debt funds. The portfolio has shown good performance over the past year with moderate risk.",
		CurrentValue: 298325,
		AnnualReturn: 12.5,
		RiskLevel:    insights.RiskModerate,
		AssetCount:   3,
		Allocation:   insights.Allocation{Equity: 65, Debt: 25, Cash: 5, Others: 5},
		Recommendations: []string{
			"Consider increasing your equity allocation for better long-term growth",
			"Review the expense ratios of your funds to optimize costs",
			"Add an international fund for geographic diversification",
			"Set up a systematic investment plan to average out market volatility",
			"Rebalance your portfolio annually to maintain the target allocation",
			"Keep an emergency fund in a liquid fund before adding more risk",
		},
	}
}

// Interpret returns the configured response without calling any provider.
func (c Client) Interpret(ctx context.Context, text string) (llm.Interpretation, error) {
	if err := ctx.Err(); err != nil {
		return llm.Interpretation{}, err
	}
	if c.Err != nil {
		return llm.Interpretation{}, c.Err
	}
	if strings.TrimSpace(c.Text) != "" {
		return llm.Interpretation{Text: c.Text, Provider: "mock", Model: "mock-text"}, nil
	}
	raw, err := json.Marshal(SampleInsight())
	if err != nil {
		return llm.Interpretation{}, err
	}
	return llm.Interpretation{Structured: raw, Provider: "mock", Model: "mock-structured"}, nil
}

var _ llm.Client = Client{}
