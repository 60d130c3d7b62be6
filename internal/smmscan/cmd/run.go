package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file] [analysis...]",
	Short: "Run selected analyses on a single file",
	Long: `Run only the named analyses on one file and exit.
Available analyses are smst (gSmst global) and swsmi (SwSmiHandler).
With no analysis named, both run.`,
	Example: `
# Only recover gSmst
smmscan run SmmDriver.efi smst

# Only the handler, as YAML
smmscan run --yaml SmmDriver.efi swsmi
  `,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyses, err := parseAnalyses(args[1:])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			logger.Info("Running analysis", "file", args[0], "analyses", analyses)
		}

		reports := scanAll(cmd.Context(), args[:1], cfg, analyses, logger.Logger)
		if err := render(cmd.OutOrStdout(), reports, cfg); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		return scanErrors(reports)
	},
	SilenceUsage: true,
}

func init() {
	runCmd.Flags().BoolP("quiet", "q", false, "Do not log the analyses being run")
}
