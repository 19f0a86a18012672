package insights

// RiskLevel is the coarse risk classification of a portfolio.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// Allocation holds asset-class percentages. Values are not normalized to 100.
type Allocation struct {
	Equity float64 `json:"equity"`
	Debt   float64 `json:"debt"`
	Cash   float64 `json:"cash"`
	Others float64 `json:"others"`
}

// Insight is the structured result of analyzing one portfolio document.
type Insight struct {
	Summary         string     `json:"summary"`
	CurrentValue    float64    `json:"currentValue"`
	AnnualReturn    float64    `json:"annualReturn"`
	RiskLevel       RiskLevel  `json:"riskLevel"`
	AssetCount      int        `json:"assetCount"`
	Allocation      Allocation `json:"allocation"`
	Recommendations []string   `json:"recommendations"`
}

// Clone returns a deep copy of the insight.
func (i Insight) Clone() Insight {
	out := i
	if i.Recommendations != nil {
		out.Recommendations = append([]string(nil), i.Recommendations...)
	}
	return out
}
