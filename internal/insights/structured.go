package insights

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/insight.schema.json
var insightSchema []byte

const schemaURL = "insight.schema.json"

// ErrInvalidStructured is returned when structured model output does not match the insight schema.
var ErrInvalidStructured = errors.New("structured insight invalid")

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(insightSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// structuredInsight mirrors Insight but tolerates numbers rendered as strings ("₹1,25,000", "12.5%").
type structuredInsight struct {
	Summary         string          `json:"summary"`
	CurrentValue    json.RawMessage `json:"currentValue"`
	AnnualReturn    json.RawMessage `json:"annualReturn"`
	RiskLevel       string          `json:"riskLevel"`
	AssetCount      json.RawMessage `json:"assetCount"`
	Allocation      struct {
		Equity json.RawMessage `json:"equity"`
		Debt   json.RawMessage `json:"debt"`
		Cash   json.RawMessage `json:"cash"`
		Others json.RawMessage `json:"others"`
	} `json:"allocation"`
	Recommendations []string `json:"recommendations"`
}

// DecodeStructured validates already-structured model output against the insight
// schema and returns the finalized Insight.
func DecodeStructured(raw []byte) (Insight, error) {
	schema, err := loadSchema()
	if err != nil {
		return Insight{}, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrInvalidStructured, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrInvalidStructured, err)
	}

	var in structuredInsight
	if err := json.Unmarshal(raw, &in); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrInvalidStructured, err)
	}

	out := Insight{
		Summary:         in.Summary,
		CurrentValue:    lenientNumber(in.CurrentValue, Defaults.CurrentValue),
		AnnualReturn:    lenientNumber(in.AnnualReturn, Defaults.AnnualReturn),
		RiskLevel:       NormalizeRisk(in.RiskLevel),
		AssetCount:      int(lenientNumber(in.AssetCount, float64(Defaults.AssetCount))),
		Recommendations: in.Recommendations,
		Allocation: Allocation{
			Equity: lenientNumber(in.Allocation.Equity, Defaults.Allocation.Equity),
			Debt:   lenientNumber(in.Allocation.Debt, Defaults.Allocation.Debt),
			Cash:   lenientNumber(in.Allocation.Cash, Defaults.Allocation.Cash),
			Others: lenientNumber(in.Allocation.Others, Defaults.Allocation.Others),
		},
	}
	return Finalize(out), nil
}

func lenientNumber(raw json.RawMessage, def float64) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		for _, prefix := range []string{"₹", "Rs.", "Rs", "INR", "$"} {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		if v, ok := parseNumber(s); ok {
			return v
		}
		return def
	}
	if v, ok := parseNumber(string(raw)); ok {
		return v
	}
	return def
}
