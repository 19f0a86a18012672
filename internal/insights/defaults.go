package insights

// MaxRecommendations caps the number of recommendations kept on an insight.
const MaxRecommendations = 6

// minRecommendationLen is exclusive: a recommendation must be longer than this.
const minRecommendationLen = 10

// Defaults is the single table of fallback values used when a field cannot be extracted.
var Defaults = struct {
	// Summary is used when the analysis text has no summary section.
	Summary string

	CurrentValue float64
	AnnualReturn float64
	RiskLevel    RiskLevel
	AssetCount   int
	Allocation   Allocation
}{
	Summary:   "Analysis completed",
	RiskLevel: RiskModerate,
}
