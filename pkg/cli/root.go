package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/bome/internal/cmdlogger"
)

var Version = "0.1.0"

// Execute runs the CLI against the process arguments and exits
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes one invocation with its own viper instance and returns the
// process exit code. The command line logger becomes the slog default, and
// any error logged during the run makes the exit code 1.
func Run(args []string, stdout, stderr io.Writer) int {
	handler := cmdlogger.New(stdout, stderr)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	rootCmd := newRootCmd(viper.New(), handler, logger)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		return 1
	}
	if handler.HasErrored() {
		return 1
	}
	return 0
}

func newRootCmd(v *viper.Viper, handler *cmdlogger.Handler, logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bome",
		Short: "Merge scanner findings into a cumulative BOM and emit a CycloneDX SBOM",
		Long: "bome folds dependency and vulnerability findings from successive scans into one\n" +
			"accumulated Bill of Materials without losing earlier results, and writes it out\n" +
			"as a CycloneDX SBOM.",
		Example: "  bome --snyk-test snyk.json --output-file sbom.json --save-bome bome.json\n" +
			"  bome --update-bome bome.json --snyk-test snyk-container.json --save-bome bome.json",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", path, err)
				}
			}
			level, err := cmdlogger.ParseLevel(v.GetString("verbosity"))
			if err != nil {
				return err
			}
			handler.SetLevel(level)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, json or toml) providing any flag by name")
	rootCmd.PersistentFlags().String("verbosity", "info", "Log level: "+strings.Join(cmdlogger.Levels(), ", "))
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))

	// Environment variable support (BOME_OUTPUT_FILE, etc.)
	v.SetEnvPrefix("BOME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindConvertFlags(rootCmd, v, logger)

	// Subcommands
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}
