package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
)

// ReportDir returns ./reports/<artifact_timestamp>/ for an exported report
func ReportDir(res schema.ExportedReport, outputDir string) string {
	return filepath.Join(outputDir, safeName(res.Meta.Artifact.Name)+"_"+res.Meta.Timestamp.Format("20060102_150405"))
}

// SaveJSON writes the report into report.json inside dir
func SaveJSON(res schema.ExportedReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	file := filepath.Join(dir, "report.json")
	fh, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create report.json: %w", err)
	}
	defer fh.Close()

	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	return file, nil
}

// SaveYAML writes the report into report.yaml inside dir
func SaveYAML(res schema.ExportedReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	file := filepath.Join(dir, "report.yaml")
	fh, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create report.yaml: %w", err)
	}
	defer fh.Close()

	enc := yaml.NewEncoder(fh)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to flush report.yaml: %w", err)
	}

	return file, nil
}

// safeName replaces characters not safe for file paths
func safeName(s string) string {
	invalid := []rune{'/', '\\', ':', '*', '?', '"', '<', '>', '|', ' '}
	rs := []rune(s)
	for i, r := range rs {
		for _, bad := range invalid {
			if r == bad {
				rs[i] = '_'
			}
		}
	}
	return string(rs)
}
