package insight

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/pkg/llm"
)

const summarySystem = `You are a clinical assistant writing for patients.
Summarize the laboratory result below in plain language in at most 150 words.
Mention values outside their usual range and what they commonly indicate.
Do not diagnose and do not recommend medication.`

const riskFlagsSystem = `You are a clinical assistant reviewing a laboratory result for a doctor.
Return a JSON object {"flags": [...]} where each flag is
{"marker": string, "value": string, "severity": "low"|"moderate"|"high", "note": string}.
Include only markers that warrant attention. Return {"flags": []} when nothing does.`

// RiskFlag is one element of a result's risk-flag artifact.
type RiskFlag struct {
	Marker   string `json:"marker"`
	Value    string `json:"value"`
	Severity string `json:"severity"`
	Note     string `json:"note"`
}

var severities = map[string]struct{}{"low": {}, "moderate": {}, "high": {}}

func resultPrompt(r *repo.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Test: %s\n", r.TestName)
	values := r.Values
	if len(values) == 0 {
		values = json.RawMessage("{}")
	}
	fmt.Fprintf(&b, "Values: %s\n", values)
	if r.Notes != nil && *r.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", *r.Notes)
	}
	return b.String()
}

func summaryPrompt(r *repo.Result) llm.Prompt {
	return llm.Prompt{System: summarySystem, User: resultPrompt(r)}
}

func riskFlagsPrompt(r *repo.Result) llm.Prompt {
	return llm.Prompt{System: riskFlagsSystem, User: resultPrompt(r), JSON: true}
}

// ParseRiskFlags accepts either {"flags": [...]} or a bare array, optionally
// inside a markdown code fence.
func ParseRiskFlags(raw string) ([]RiskFlag, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, llm.ErrEmptyResponse
	}

	var flags []RiskFlag
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &flags); err != nil {
			return nil, fmt.Errorf("risk flags are not valid JSON: %w", err)
		}
	} else {
		var wrapped struct {
			Flags *[]RiskFlag `json:"flags"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("risk flags are not valid JSON: %w", err)
		}
		if wrapped.Flags == nil {
			return nil, errors.New("risk flags response has no flags field")
		}
		flags = *wrapped.Flags
	}

	for i := range flags {
		f := &flags[i]
		f.Marker = strings.TrimSpace(f.Marker)
		f.Severity = strings.ToLower(strings.TrimSpace(f.Severity))
		if f.Marker == "" {
			return nil, fmt.Errorf("risk flag %d has no marker", i)
		}
		if _, ok := severities[f.Severity]; !ok {
			return nil, fmt.Errorf("risk flag %q has unknown severity %q", f.Marker, f.Severity)
		}
	}
	if flags == nil {
		flags = []RiskFlag{}
	}
	return flags, nil
}
