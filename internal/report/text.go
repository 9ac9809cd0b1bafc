package report

import (
	"fmt"
	"io"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
)

// WriteText prints a terminal summary of a report.
func WriteText(w io.Writer, res schema.ExportedReport) error {
	r := res.Report
	a := res.Meta.Artifact

	lines := []string{
		fmt.Sprintf("Artifact:   %s (%s)", a.Name, a.SizeLabel),
		fmt.Sprintf("Score:      %d/100", r.SecurityScore),
		fmt.Sprintf("Risk level: %s", r.RiskLevel),
		fmt.Sprintf("Summary:    CRITICAL THREATS %d | HIGH RISK %d | WARNINGS %d | TOTAL ISSUES %d",
			r.Summary.CriticalCount, r.Summary.HighCount, r.Summary.MediumCount, r.Summary.TotalIssues),
		"",
		"Findings:",
	}
	if len(r.Findings) == 0 {
		lines = append(lines, "  "+NoFindingsText)
	}
	for _, f := range r.Findings {
		lines = append(lines, fmt.Sprintf("  [%s] %s: %s", f.Severity, f.Category, trimTo(f.Description, 200)))
	}

	lines = append(lines, "", "Recommendations:")
	if len(r.Recommendations) == 0 {
		lines = append(lines, "  "+NoRecommendationsText)
	}
	for _, rec := range r.Recommendations {
		lines = append(lines, "  - "+rec)
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
