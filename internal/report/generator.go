package report

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
)

//go:embed templates/report.html.tmpl
var reportHTMLTemplate string

const (
	NoFindingsText        = "NO THREATS DETECTED. SYSTEM SECURE."
	NoRecommendationsText = "NO RECOMMENDATIONS AVAILABLE."

	gaugeRadius = 90
)

// ---------- Public API ----------

func LoadReport(fromDir string) (schema.ExportedReport, error) {
	var res schema.ExportedReport
	data, err := os.ReadFile(filepath.Join(fromDir, "report.json"))
	if err != nil {
		return res, fmt.Errorf("read report.json: %w", err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("parse report.json: %w", err)
	}
	return res, nil
}

func GenerateHTML(res schema.ExportedReport, outDir string) (string, error) {
	vm := buildViewModel(res, time.Now().UTC())

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}

	tmpl, err := template.New("report").Parse(reportHTMLTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vm); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write report.html: %w", err)
	}

	return htmlPath, nil
}

var ErrChromeNotFound = errors.New("chrome or chromium not found")

var chromeNames = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// FindChrome returns the first browser executable on PATH.
func FindChrome() (string, error) {
	for _, name := range chromeNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrChromeNotFound
}

// GeneratePDF prints htmlPath to a sibling .pdf with headless Chrome. An empty
// chromePath searches PATH.
func GeneratePDF(ctx context.Context, htmlPath, chromePath string) (string, error) {
	if chromePath == "" {
		p, err := FindChrome()
		if err != nil {
			return "", err
		}
		chromePath = p
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", htmlPath, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(chromePath))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp: %w", err)
	}

	pdfPath := strings.TrimSuffix(htmlPath, ".html") + ".pdf"
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return "", fmt.Errorf("write report.pdf: %w", err)
	}
	return pdfPath, nil
}

// ---------- View Model & helpers ----------

type viewModel struct {
	ArtifactName    string
	ArtifactSize    string
	SubmissionID    string
	Server          string
	ScanTime        string
	Score           int
	RiskLevel       string
	RiskColor       string
	GaugeLength     string
	GaugeOffset     string
	Cards           []summaryCard
	Findings        []findingRow
	Recommendations []string
	NoFindings      string
	NoRecs          string
	Generator       string
	GeneratedAt     string
	Year            int
}

type summaryCard struct {
	Label string
	Value int
	Color string
}

type findingRow struct {
	Category    string
	Severity    string
	Description string
}

func buildViewModel(res schema.ExportedReport, now time.Time) viewModel {
	r := res.Report

	rows := make([]findingRow, 0, len(r.Findings))
	for _, f := range r.Findings {
		rows = append(rows, findingRow{
			Category:    f.Category,
			Severity:    f.Severity,
			Description: trimTo(f.Description, 500),
		})
	}

	circumference := 2 * math.Pi * gaugeRadius
	offset := circumference - float64(r.SecurityScore)/100*circumference

	return viewModel{
		ArtifactName: res.Meta.Artifact.Name,
		ArtifactSize: res.Meta.Artifact.SizeLabel,
		SubmissionID: emptyFallback(res.Meta.SubmissionID, "N/A"),
		Server:       emptyFallback(res.Meta.Server, "-"),
		ScanTime:     res.Meta.Timestamp.UTC().Format(time.RFC3339),
		Score:        r.SecurityScore,
		RiskLevel:    string(r.RiskLevel),
		RiskColor:    RiskColor(r.RiskLevel),
		GaugeLength:  fmt.Sprintf("%.2f", circumference),
		GaugeOffset:  fmt.Sprintf("%.2f", offset),
		Cards: []summaryCard{
			{Label: "CRITICAL THREATS", Value: r.Summary.CriticalCount, Color: "#ff0055"},
			{Label: "HIGH RISK", Value: r.Summary.HighCount, Color: "#ff5500"},
			{Label: "WARNINGS", Value: r.Summary.MediumCount, Color: "#ffcc00"},
			{Label: "TOTAL ISSUES", Value: r.Summary.TotalIssues, Color: "#ffffff"},
		},
		Findings:        rows,
		Recommendations: r.Recommendations,
		NoFindings:      NoFindingsText,
		NoRecs:          NoRecommendationsText,
		Generator:       "artiscan",
		GeneratedAt:     now.Format(time.RFC3339),
		Year:            now.Year(),
	}
}

// RiskColor maps a risk level to its display colour.
func RiskColor(level schema.RiskLevel) string {
	switch level {
	case schema.RiskCritical:
		return "#ff0055"
	case schema.RiskHigh:
		return "#ff5500"
	case schema.RiskMedium:
		return "#ffcc00"
	default:
		return "#00f3ff"
	}
}

func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}

func emptyFallback(s, fb string) string {
	if strings.TrimSpace(s) == "" {
		return fb
	}
	return s
}
