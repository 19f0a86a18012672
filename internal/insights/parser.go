package insights

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// sep matches the label/value separator, tolerating markdown bold around the colon.
const sep = `\s*\**\s*:?\s*\**\s*`

var (
	summaryLabelLine = regexp.MustCompile(`(?im)^[\s#*\d.)-]*(?:portfolio\s+)?summary\b`)
	summaryLabel     = regexp.MustCompile(`(?i)(?:portfolio\s+)?summary\b`)
	recsLabelLine    = regexp.MustCompile(`(?im)^[\s#*\d.)-]*recommendations\b`)
	recsLabel        = regexp.MustCompile(`(?i)recommendations\b`)

	currentValueRe = regexp.MustCompile(`(?i)current\s+value(?:\s+estimate)?` + sep + `(?:₹|rs\.?|inr|\$)?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	annualReturnRe = regexp.MustCompile(`(?i)annual\s+return` + sep + `([-+]?[0-9]+(?:\.[0-9]+)?)\s*%`)
	riskLowRe      = regexp.MustCompile(`(?i)risk(?:\s+(?:level|profile|assessment))?` + sep + `low`)
	riskHighRe     = regexp.MustCompile(`(?i)risk(?:\s+(?:level|profile|assessment))?` + sep + `high`)
	assetCountRe   = regexp.MustCompile(`(?i)(?:number\s+of\s+(?:assets|funds|holdings)|funds|holdings)` + sep + `([0-9]+)`)

	allocationRes = map[string]*regexp.Regexp{
		"equity": allocationRe("equity"),
		"debt":   allocationRe("debt"),
		"cash":   allocationRe("cash"),
		"others": allocationRe("others"),
	}

	enumerationMarker = regexp.MustCompile(`^\s*[0-9.)\-*•]*\s*`)
	labelLine         = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z /&()-]{0,40}:`)
)

func allocationRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + sep + `([0-9]+(?:\.[0-9]+)?)\s*%`)
}

// Parse extracts an Insight from free-form analysis text. It never fails:
// any field that cannot be found takes its value from Defaults.
func Parse(text string) Insight {
	out, _ := ParseWithReport(text)
	return out
}

// ParseWithReport is Parse plus the names of the fields that fell back to defaults.
func ParseWithReport(text string) (Insight, []string) {
	var missing []string
	miss := func(field string) { missing = append(missing, field) }

	out := Insight{
		Summary:      Defaults.Summary,
		CurrentValue: Defaults.CurrentValue,
		AnnualReturn: Defaults.AnnualReturn,
		RiskLevel:    Defaults.RiskLevel,
		AssetCount:   Defaults.AssetCount,
		Allocation:   Defaults.Allocation,
	}

	if summary := strings.Join(section(text, summaryLabelLine, summaryLabel), " "); strings.TrimSpace(summary) != "" {
		out.Summary = collapseSpaces(summary)
	} else {
		miss("summary")
	}

	if v, ok := matchNumber(currentValueRe, text); ok {
		out.CurrentValue = v
	} else {
		miss("currentValue")
	}

	if v, ok := matchNumber(annualReturnRe, text); ok {
		out.AnnualReturn = v
	} else {
		miss("annualReturn")
	}

	switch {
	case riskLowRe.MatchString(text):
		out.RiskLevel = RiskLow
	case riskHighRe.MatchString(text):
		out.RiskLevel = RiskHigh
	default:
		miss("riskLevel")
	}

	if v, ok := matchNumber(assetCountRe, text); ok {
		out.AssetCount = int(v)
	} else {
		miss("assetCount")
	}

	for _, label := range []string{"equity", "debt", "cash", "others"} {
		v, ok := matchNumber(allocationRes[label], text)
		if !ok {
			miss("allocation." + label)
			continue
		}
		switch label {
		case "equity":
			out.Allocation.Equity = v
		case "debt":
			out.Allocation.Debt = v
		case "cash":
			out.Allocation.Cash = v
		case "others":
			out.Allocation.Others = v
		}
	}

	out.Recommendations = cleanRecommendations(section(text, recsLabelLine, recsLabel))
	if len(out.Recommendations) == 0 {
		miss("recommendations")
	}

	return Finalize(out), missing
}

// section returns the lines of a labeled block: the text after the label up to
// a blank line, a line starting with a capital letter, another "label:" line,
// or the end of input.
// A label at the start of a line is preferred over one inside running text.
func section(text string, lineLabel, anyLabel *regexp.Regexp) []string {
	loc := lineLabel.FindStringIndex(text)
	if loc == nil {
		loc = anyLabel.FindStringIndex(text)
	}
	if loc == nil {
		return nil
	}
	rest := text[loc[1]:]

	head, tail, _ := strings.Cut(rest, "\n")
	head = strings.TrimLeft(head, " \t*:")
	head = strings.TrimSpace(strings.TrimRight(head, "*"))
	if strings.HasSuffix(head, ":") {
		head = ""
	}

	var lines []string
	if head != "" {
		lines = append(lines, head)
	} else {
		tail = strings.TrimLeft(tail, " \t\r\n")
		first, remaining, _ := strings.Cut(tail, "\n")
		if strings.TrimSpace(first) == "" {
			return nil
		}
		lines = append(lines, strings.TrimSpace(first))
		tail = remaining
	}

	for _, line := range strings.Split(tail, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || startsUpper(trimmed) || labelLine.MatchString(trimmed) {
			break
		}
		lines = append(lines, trimmed)
	}
	return lines
}

func startsUpper(line string) bool {
	for _, r := range line {
		return unicode.IsUpper(r)
	}
	return false
}

func matchNumber(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	return parseNumber(m[1])
}

// parseNumber parses a decimal literal that may carry thousands separators or a sign.
func parseNumber(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" || cleaned == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func cleanRecommendations(lines []string) []string {
	out := make([]string, 0, MaxRecommendations)
	for _, line := range lines {
		if len(out) == MaxRecommendations {
			break
		}
		cleaned := strings.TrimSpace(enumerationMarker.ReplaceAllString(line, ""))
		if len([]rune(cleaned)) > minRecommendationLen {
			out = append(out, cleaned)
		}
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
