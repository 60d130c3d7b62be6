package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"smmscan/internal/config"
	"smmscan/internal/logging"
	"smmscan/internal/smmscan/log"
	"smmscan/internal/ui/colorize"
)

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().String("region", "", "Section scanned for the protocol GUID (default .data)")
	rootCmd.PersistentFlags().Bool("strict", false, "Require all 16 GUID bytes to match, not only Data1")
	rootCmd.PersistentFlags().StringSlice("identifier", nil, "Extra protocol GUID to search for, as NAME=GUID")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().Bool("yaml", false, "Output results as YAML")
	rootCmd.PersistentFlags().Bool("listing", false, "Print a disassembly listing of each recovered handler")

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().IntP("jobs", "J", 0, "Files scanned concurrently (default: number of CPUs)")

	rootCmd.AddCommand(runCmd)
}

var rootCmd = &cobra.Command{
	Use:   "smmscan [file...]",
	Short: "Locate gSmst and SwSmiHandler in UEFI SMM drivers",
	Long: `Smmscan recovers the SMM system table global (gSmst) and the software SMI
handler registered through EFI_SMM_SW_DISPATCH(2)_PROTOCOL in x86-64 UEFI
drivers. Both are found by pattern: the protocol GUID in .data, the code
referencing it and the instructions set up around those references.`,
	Example: `
# Scan a driver
smmscan SmmDriver.efi

# Scan a directory dump, four files at a time, as JSON
smmscan -J 4 --json dump/*.efi

# Show the handler disassembly
smmscan --listing SmmDriver.efi
  `,
	Args:              cobra.MinimumNArgs(1),
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reports := scanAll(cmd.Context(), args, cfg, allAnalyses, logger.Logger)
		if err := render(cmd.OutOrStdout(), reports, cfg); err != nil {
			return err
		}
		return scanErrors(reports)
	},
	SilenceUsage: true,
}

var logger *logging.LoggerCloser

func setup(cmd *cobra.Command, _ []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	log.Setup("", debug || logging.IsDebug())

	logger = logging.NewLogger()
	if debug {
		logger.EnableDebug()
	}
	if !term.IsTerminal(os.Stdout.Fd()) {
		os.Setenv(colorize.NoColorEnv, "1")
	}
	return nil
}

// loadConfig reads the environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("region") {
		cfg.Region, _ = flags.GetString("region")
	}
	if flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("identifier") {
		extra, _ := flags.GetStringSlice("identifier")
		cfg.Identifiers = append(cfg.Identifiers, extra...)
	}
	if flags.Changed("jobs") {
		cfg.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("listing") {
		cfg.Listing, _ = flags.GetBool("listing")
	}
	jsonOut, _ := flags.GetBool("json")
	yamlOut, _ := flags.GetBool("yaml")
	switch {
	case jsonOut && yamlOut:
		return nil, errors.New("--json and --yaml are mutually exclusive")
	case jsonOut:
		cfg.Format = config.FormatJSON
	case yamlOut:
		cfg.Format = config.FormatYAML
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	// Machine-readable output and pipes bypass fang's styled help and errors.
	plain := !term.IsTerminal(os.Stdout.Fd())
	for _, arg := range os.Args[1:] {
		if arg == "--json" || arg == "-j" || arg == "--yaml" {
			plain = true
			break
		}
	}

	var err error
	if plain {
		err = rootCmd.ExecuteContext(ctx)
	} else {
		err = fang.Execute(ctx, rootCmd, fang.WithNotifySignal(os.Interrupt))
	}
	stop()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
