package insights

import (
	"math"
	"strings"
)

// Finalize applies defaults, clamping and recommendation rules so that the
// returned insight satisfies every field invariant regardless of its source.
func Finalize(in Insight) Insight {
	out := in.Clone()

	out.Summary = collapseSpaces(out.Summary)
	if out.Summary == "" {
		out.Summary = Defaults.Summary
	}
	out.CurrentValue = nonNegative(out.CurrentValue)
	out.AnnualReturn = finite(out.AnnualReturn)
	out.RiskLevel = NormalizeRisk(string(out.RiskLevel))
	if out.AssetCount < 0 {
		out.AssetCount = 0
	}
	out.Allocation = Allocation{
		Equity: nonNegative(out.Allocation.Equity),
		Debt:   nonNegative(out.Allocation.Debt),
		Cash:   nonNegative(out.Allocation.Cash),
		Others: nonNegative(out.Allocation.Others),
	}
	out.Recommendations = cleanRecommendations(out.Recommendations)
	return out
}

// NormalizeRisk maps free-form risk labels onto the three known levels.
func NormalizeRisk(raw string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow
	case "high":
		return RiskHigh
	case "moderate", "medium":
		return RiskModerate
	default:
		return Defaults.RiskLevel
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	v = finite(v)
	if v < 0 {
		return 0
	}
	return v
}
