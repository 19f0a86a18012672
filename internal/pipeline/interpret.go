package pipeline

import (
	"portfolio-backend/internal/insights"
	"portfolio-backend/internal/llm"
)

// InsightFromInterpretation turns a model response into an insight. Structured
// responses are schema-validated. Text, empty included, goes through the parser
// and the defaulted field names are returned.
func InsightFromInterpretation(resp llm.Interpretation) (insights.Insight, []string, error) {
	switch {
	case resp.IsStructured():
		insight, err := insights.DecodeStructured(resp.Structured)
		if err != nil {
			return insights.Insight{}, nil, err
		}
		return insight, nil, nil
	default:
		insight, missing := insights.ParseWithReport(resp.Text)
		return insight, missing, nil
	}
}
