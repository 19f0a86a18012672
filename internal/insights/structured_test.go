package insights

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeStructuredValid(t *testing.T) {
	raw := []byte(`{
		"summary": "Balanced portfolio",
		"currentValue": 298325,
		"annualReturn": 12.5,
		"riskLevel": "moderate",
		"assetCount": 3,
		"allocation": {"equity": 65, "debt": 25, "cash": 5, "others": 5},
		"recommendations": ["1. Consider increasing equity exposure", "short"]
	}`)

	got, err := DecodeStructured(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Insight{
		Summary:         "Balanced portfolio",
		CurrentValue:    298325,
		AnnualReturn:    12.5,
		RiskLevel:       RiskModerate,
		AssetCount:      3,
		Allocation:      Allocation{Equity: 65, Debt: 25, Cash: 5, Others: 5},
		Recommendations: []string{"Consider increasing equity exposure"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeStructuredLenientStrings(t *testing.T) {
	raw := []byte(`{"summary":"ok","currentValue":"₹1,25,000","annualReturn":"-2.5%","assetCount":"4","riskLevel":"HIGH","allocation":{"equity":"-10"}}`)

	got, err := DecodeStructured(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CurrentValue != 125000 || got.AnnualReturn != -2.5 || got.AssetCount != 4 {
		t.Fatalf("unexpected numbers: %+v", got)
	}
	if got.RiskLevel != RiskHigh {
		t.Fatalf("risk = %q", got.RiskLevel)
	}
	if got.Allocation.Equity != 0 {
		t.Fatalf("negative allocation should clamp to 0, got %v", got.Allocation.Equity)
	}
}

func TestDecodeStructuredRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"not json":          `summary: nope`,
		"missing summary":   `{"currentValue": 1}`,
		"wrong type":        `{"summary": "x", "recommendations": "not a list"}`,
		"allocation scalar": `{"summary": "x", "allocation": 5}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeStructured([]byte(raw))
			if !errors.Is(err, ErrInvalidStructured) {
				t.Fatalf("expected ErrInvalidStructured, got %v", err)
			}
		})
	}
}

func TestFinalizeClampsAndDefaults(t *testing.T) {
	in := Insight{
		Summary:      "   ",
		CurrentValue: -5,
		RiskLevel:    "unknown",
		AssetCount:   -1,
		Allocation:   Allocation{Equity: -1, Debt: 30},
	}
	got := Finalize(in)
	if got.Summary != Defaults.Summary {
		t.Fatalf("summary = %q", got.Summary)
	}
	if got.CurrentValue != 0 || got.AssetCount != 0 || got.Allocation.Equity != 0 {
		t.Fatalf("expected clamped values, got %+v", got)
	}
	if got.Allocation.Debt != 30 {
		t.Fatalf("debt changed: %v", got.Allocation.Debt)
	}
	if got.RiskLevel != RiskModerate {
		t.Fatalf("risk = %q", got.RiskLevel)
	}
	if got.Recommendations == nil || len(got.Recommendations) != 0 {
		t.Fatalf("expected empty recommendations, got %#v", got.Recommendations)
	}
}
