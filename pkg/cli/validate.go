package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/artiscan/internal/artifact"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Check whether a file is an acceptable artifact without submitting it",
		Example: "artiscan validate --file ./setup.exe",
		RunE:    runValidate,
	}
	cmd.Flags().String("file", "", "Artifact to check")
	_ = viper.BindPFlag("validate.file", cmd.Flags().Lookup("file"))
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	path := viper.GetString("validate.file")
	if path == "" {
		return errors.New("please provide --file")
	}
	c, err := artifact.FileCandidate(path)
	if err != nil {
		return err
	}
	a, err := artifact.Validate(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is a valid .%s artifact (%s)\n", a.Name, a.Extension, a.SizeLabel)
	return nil
}
