package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
)

const (
	DefaultCategory = "ISSUE"
	DefaultSeverity = "UNKNOWN"
)

// Normalize maps a raw scan service payload into a ScanReport. It never fails:
// missing or malformed fields fall back to their defaults. A nil payload is
// treated as an empty object.
func Normalize(raw *Object) schema.ScanReport {
	return schema.ScanReport{
		SecurityScore:   securityScore(raw),
		RiskLevel:       riskLevel(raw),
		Summary:         summary(raw),
		Findings:        findings(raw),
		Recommendations: recommendations(raw),
	}
}

func securityScore(raw *Object) int {
	v, _ := get(raw, "security_score")
	n, ok := number(v)
	if !ok || n < 0 || n > 100 {
		return 0
	}
	return int(math.Round(n))
}

func riskLevel(raw *Object) schema.RiskLevel {
	v, _ := get(raw, "risk_level")
	s, _ := v.(string)
	switch lvl := schema.RiskLevel(s); lvl {
	case schema.RiskCritical, schema.RiskHigh, schema.RiskMedium:
		return lvl
	}
	return schema.RiskSafe
}

func summary(raw *Object) schema.Summary {
	v, _ := get(raw, "summary")
	obj, _ := asObject(v)
	return schema.Summary{
		CriticalCount: count(obj, "critical"),
		HighCount:     count(obj, "high"),
		MediumCount:   count(obj, "medium"),
		TotalIssues:   count(obj, "total_issues"),
	}
}

func count(obj *Object, key string) int {
	v, _ := get(obj, key)
	n, ok := number(v)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

// findings resolves the raw entry list by precedence: a mapping of categories,
// then the issues list. A flat findings list is used only when there is no
// issues list.
func findings(raw *Object) []schema.Finding {
	var entries []any

	v, _ := get(raw, "findings")
	issuesValue, _ := get(raw, "issues")
	issues, hasIssues := issuesValue.([]any)
	if fs, ok := asObject(v); ok {
		for _, key := range fs.Keys() {
			group, _ := fs.Get(key)
			entries = append(entries, groupEntries(group)...)
		}
	} else if hasIssues {
		entries = issues
	} else if flat, ok := v.([]any); ok {
		entries = flat
	}

	out := make([]schema.Finding, 0, len(entries))
	for _, e := range entries {
		out = append(out, toFinding(e))
	}
	return out
}

func groupEntries(group any) []any {
	if g, ok := asObject(group); ok {
		nested, _ := g.Get("findings")
		list, _ := nested.([]any)
		return list
	}
	list, _ := group.([]any)
	return list
}

func toFinding(entry any) schema.Finding {
	f := schema.Finding{
		Category: DefaultCategory,
		Severity: DefaultSeverity,
	}
	if e, ok := asObject(entry); ok {
		if s, ok := text(e, "type"); ok {
			f.Category = s
		}
		if s, ok := text(e, "severity"); ok {
			f.Severity = s
		}
		if s, ok := text(e, "description"); ok {
			f.Description = s
		} else if s, ok := text(e, "value"); ok {
			f.Description = s
		} else {
			f.Description = dump(e)
		}
		return f
	}
	if s, ok := entry.(string); ok && s != "" {
		f.Description = s
	} else {
		f.Description = dump(entry)
	}
	return f
}

func recommendations(raw *Object) []string {
	v, _ := get(raw, "recommendations")
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, r := range list {
		if s, ok := r.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, dump(r))
	}
	return out
}

// ErrorMessage returns the service supplied "error" text, or "" when absent.
func ErrorMessage(raw *Object) string {
	v, _ := get(raw, "error")
	s, _ := v.(string)
	return s
}

// text returns a non-empty string or number field as text.
func text(obj *Object, key string) (string, bool) {
	v, ok := get(obj, key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func number(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func dump(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
