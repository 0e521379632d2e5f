package commands

import (
	"log/slog"
	"os"

	"github.com/mlhmz/hubspot-booking-api/internal/config"
	"github.com/spf13/cobra"
)

var (
	logger *slog.Logger
	cfg    *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hubspot-booking-api",
	Short: "HubSpot meeting availability API",
	Long: `An HTTP service that returns HubSpot meeting-link availability as readable,
timezone-aware slots, plus the tooling to build and run it as a Docker container.

Use 'serve' inside the container, and 'image build' / 'deploy run' on the Docker host.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel, _ := cmd.Flags().GetString("log-level")
		logFormat, _ := cmd.Flags().GetString("log-format")
		logger = config.SetupLogger(logLevel, logFormat)

		var err error
		cfg, err = config.Load()
		if err != nil {
			logger.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}

		if path, _ := cmd.Flags().GetString("config"); path != "" {
			df, err := config.LoadDeployFile(path)
			if err != nil {
				logger.Error("Failed to load deploy file", "path", path, "error", err)
				os.Exit(1)
			}
			df.Apply(cfg)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringP("log-format", "f", "", "Log format (json, text)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Deployment profile (YAML)")
}
