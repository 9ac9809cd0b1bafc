package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	reportpkg "github.com/yorozuya-cybersecurity/artiscan/internal/report"
	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
	"github.com/yorozuya-cybersecurity/artiscan/pkg/utils"
)

// parseFormats splits a comma separated format list and rejects anything not in allowed.
func parseFormats(raw string, allowed []string) ([]string, error) {
	var formats []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(strings.ToLower(f))
		if f == "" {
			continue
		}
		if !slices.Contains(allowed, f) {
			return nil, fmt.Errorf("unsupported format %q (want one of %s)", f, strings.Join(allowed, ","))
		}
		if !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output format selected (want one of %s)", strings.Join(allowed, ","))
	}
	return formats, nil
}

// writeOutputs renders res in every requested format. Files land in dir, or in a
// fresh per-scan directory under --output when dir is empty.
func writeOutputs(ctx context.Context, out io.Writer, res schema.ExportedReport, formats []string, dir string) error {
	if slices.Contains(formats, "text") {
		fmt.Fprintln(out)
		if err := reportpkg.WriteText(out, res); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if dir == "" {
		dir = utils.ReportDir(res, viper.GetString("output"))
	}

	if slices.Contains(formats, "json") {
		path, err := utils.SaveJSON(res, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📦 JSON report: %s\n", path)
	}
	if slices.Contains(formats, "yaml") {
		path, err := utils.SaveYAML(res, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📦 YAML report: %s\n", path)
	}

	wantPDF := slices.Contains(formats, "pdf")
	if !wantPDF && !slices.Contains(formats, "html") {
		return nil
	}
	htmlPath, err := reportpkg.GenerateHTML(res, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "📝 HTML report: %s\n", htmlPath)

	if wantPDF {
		pdfPath, err := reportpkg.GeneratePDF(ctx, htmlPath, viper.GetString("chrome.path"))
		if err != nil {
			log.WithField("html", htmlPath).Debugf("pdf rendering failed: %v", err)
			fmt.Fprintf(out, "⚠️  PDF generation failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "📄 PDF report:  %s\n", pdfPath)
		}
	}
	return nil
}
