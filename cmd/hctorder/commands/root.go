package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/hctorder/internal/config"
	"github.com/dyluth/hctorder/internal/logging"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath string
	verbose    bool

	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hctorder",
	Short: "hctorder - Counterbalanced trial orders for heartbeat counting sessions",
	Long: `hctorder assigns each participant the heartbeat counting task (HCT) trial
order prescribed by the study's counterbalancing table, and writes the
session record, the report parameters and an editable report for the session.

Configuration is read from hctorder.yml in the working directory, or from the
file named by --config or $HCTORDER_CONFIG. Run 'hctorder init' to create one.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	// Prevent silent success when unknown flags are passed to root command
	// e.g., "hctorder --id 7" instead of "hctorder generate --id 7"
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile,
		"Path to the configuration file (or set $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
}
