package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	reportpkg "github.com/yorozuya-cybersecurity/artiscan/internal/report"
)

var reportFormats = []string{"text", "html", "pdf", "yaml"}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Re-render a saved scan report",
		Example: "artiscan report --from ./reports/app.apk_20250911_131722 --format html,pdf",
		RunE:    runReport,
	}

	cmd.Flags().String("from", "", "Report directory (must contain report.json)")
	cmd.Flags().String("format", "html,pdf", "Output formats: text,html,pdf,yaml")

	_ = viper.BindPFlag("report.from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("report.format", cmd.Flags().Lookup("format"))
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	from := viper.GetString("report.from")
	if from == "" {
		return errors.New("please provide --from pointing to the report directory (with report.json)")
	}
	formats, err := parseFormats(viper.GetString("report.format"), reportFormats)
	if err != nil {
		return err
	}

	res, err := reportpkg.LoadReport(from)
	if err != nil {
		return err
	}
	return writeOutputs(cmd.Context(), cmd.OutOrStdout(), res, formats, from)
}
