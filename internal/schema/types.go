package schema

import "time"

// RiskLevel is the overall verdict reported by the scan service
type RiskLevel string

const (
	RiskSafe     RiskLevel = "SAFE"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Artifact is the file selected for scanning
type Artifact struct {
	Name      string `json:"name" yaml:"name"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Extension string `json:"extension" yaml:"extension"`
	SizeLabel string `json:"size_label" yaml:"size_label"`
}

// Finding is one normalized issue reported by the scan service
type Finding struct {
	Category    string `json:"category" yaml:"category"`
	Severity    string `json:"severity" yaml:"severity"`
	Description string `json:"description" yaml:"description"`
}

// Summary holds the per-severity counters of a report
type Summary struct {
	CriticalCount int `json:"critical" yaml:"critical"`
	HighCount     int `json:"high" yaml:"high"`
	MediumCount   int `json:"medium" yaml:"medium"`
	TotalIssues   int `json:"total_issues" yaml:"total_issues"`
}

// ScanReport is the canonical, shape-stable result of one scan
type ScanReport struct {
	SecurityScore   int       `json:"security_score" yaml:"security_score"`
	RiskLevel       RiskLevel `json:"risk_level" yaml:"risk_level"`
	Summary         Summary   `json:"summary" yaml:"summary"`
	Findings        []Finding `json:"findings" yaml:"findings"`
	Recommendations []string  `json:"recommendations" yaml:"recommendations"`
}

// ReportMeta describes the scan a report was produced by
type ReportMeta struct {
	SubmissionID string    `json:"submission_id" yaml:"submission_id"`
	Artifact     Artifact  `json:"artifact" yaml:"artifact"`
	Server       string    `json:"server" yaml:"server"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// ExportedReport is the on-disk form written by the json/yaml outputs
type ExportedReport struct {
	Meta   ReportMeta `json:"meta" yaml:"meta"`
	Report ScanReport `json:"report" yaml:"report"`
}
