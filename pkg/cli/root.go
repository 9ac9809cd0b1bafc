package cli

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/artiscan/internal/transport"
)

var (
	Version = "0.1.0"
	rootCmd *cobra.Command
)

func init() {
	rootCmd = NewRootCmd()
}

// NewRootCmd builds the command tree and binds its flags to viper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artiscan",
		Short: "Submit an executable to a remote scanning service and view its risk report",
		Long: "artiscan uploads a single .exe or .apk artifact to a scanning service, normalizes the " +
			"service's answer into a canonical risk report and renders it as text, HTML, PDF, JSON or YAML.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}

	// Global flags
	cmd.PersistentFlags().StringP("output", "o", "./reports", "Output directory")
	cmd.PersistentFlags().String("server", transport.DefaultBaseURL, "Scanning service base URL")
	cmd.PersistentFlags().String("config", "", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	cmd.PersistentFlags().String("chrome-path", "", "Chrome/Chromium executable for PDF output (default: search PATH)")
	_ = viper.BindPFlag("output", cmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("server", cmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("chrome.path", cmd.PersistentFlags().Lookup("chrome-path"))

	// Environment variable support (ARTISCAN_SERVER, ARTISCAN_SCAN_TIMEOUT, etc.)
	viper.SetEnvPrefix("ARTISCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Subcommands
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	level, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(cmd.ErrOrStderr())
	switch viper.GetString("log.format") {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid --log-format %q (want text or json)", viper.GetString("log.format"))
	}
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debugf("using config file %s", f)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
