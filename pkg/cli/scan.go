package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/artiscan/internal/artifact"
	"github.com/yorozuya-cybersecurity/artiscan/internal/metrics"
	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
	"github.com/yorozuya-cybersecurity/artiscan/internal/session"
	"github.com/yorozuya-cybersecurity/artiscan/internal/transport"
)

var scanFormats = []string{"text", "html", "pdf", "json", "yaml"}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan",
		Short:   "Submit an .exe or .apk artifact for a security scan",
		Example: "artiscan scan --file ./app.apk --server http://localhost:5000/api --format text,html,json",
		RunE:    runScan,
	}

	cmd.Flags().String("file", "", "Artifact to scan (.exe or .apk)")
	cmd.Flags().Duration("timeout", 5*time.Minute, "Give up on the scan service after this long (0 disables)")
	cmd.Flags().String("format", "text,json", "Output formats: text,html,pdf,json,yaml")
	cmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics to this file after the scan")

	_ = viper.BindPFlag("scan.file", cmd.Flags().Lookup("file"))
	_ = viper.BindPFlag("scan.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("scan.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("scan.metrics-textfile", cmd.Flags().Lookup("metrics-textfile"))
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	path := viper.GetString("scan.file")
	if path == "" {
		return errors.New("please provide --file pointing to an .exe or .apk artifact")
	}
	formats, err := parseFormats(viper.GetString("scan.format"), scanFormats)
	if err != nil {
		return err
	}
	server := viper.GetString("server")
	out := cmd.OutOrStdout()

	recorder := metrics.NewRecorder()
	if textfile := viper.GetString("scan.metrics-textfile"); textfile != "" {
		defer func() {
			if err := recorder.WriteTextfile(textfile); err != nil {
				log.Warnf("unable to write metrics: %s", err.Error())
			}
		}()
	}

	tr := transport.NewHTTPTransport(server, &http.Client{})
	tr.UserAgent = "artiscan/" + Version
	tr.Observe = recorder.ObserveHTTP
	sess := session.New(tr, session.WithListener(session.Listeners{console{w: out}, recorder}))

	candidate, err := artifact.FileCandidate(path)
	if err != nil {
		return err
	}
	if _, err := sess.Select(candidate); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := viper.GetDuration("scan.timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := sess.Submit(ctx)
	if err != nil {
		return fmt.Errorf("scan of %s failed: %w", candidate.Name(), err)
	}

	a, _ := sess.Artifact()
	res := schema.ExportedReport{
		Meta: schema.ReportMeta{
			SubmissionID: sess.SubmissionID(),
			Artifact:     a,
			Server:       server,
			Timestamp:    time.Now().UTC(),
		},
		Report: *report,
	}
	return writeOutputs(cmd.Context(), out, res, formats, "")
}
