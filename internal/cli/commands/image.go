package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlhmz/hubspot-booking-api/internal/deploy"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage the service image",
}

var imageBuildCmd = &cobra.Command{
	Use:   "build [context]",
	Short: "Build the service image",
	Long: `Build the service image from a Dockerfile in the build context
(default: the current directory).`,
	Example: `  hubspot-booking-api image build
  hubspot-booking-api image build . --tag rtodea/hubspot-booking-api:latest --tag rtodea/hubspot-booking-api:1.0.0
  hubspot-booking-api image build --build-arg GO_VERSION=1.25`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		contextDir := "."
		if len(args) > 0 {
			contextDir = args[0]
		}
		tags, _ := cmd.Flags().GetStringSlice("tag")
		dockerfile, _ := cmd.Flags().GetString("file")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		quiet, _ := cmd.Flags().GetBool("quiet")
		buildArgPairs, _ := cmd.Flags().GetStringArray("build-arg")

		buildArgs, err := deploy.ParseBuildArgs(buildArgPairs)
		if err != nil {
			logger.Error("Invalid build argument", "error", err)
			os.Exit(1)
		}

		if len(tags) == 0 {
			tags = []string{cfg.Image}
		}

		ctx, cancel := signalContext()
		defer cancel()

		runner, cleanup := initializeServices()
		defer cleanup()

		req := deploy.BuildRequest{
			ContextDir: contextDir,
			Dockerfile: dockerfile,
			Tags:       tags,
			BuildArgs:  buildArgs,
			NoCache:    noCache,
		}
		if !quiet {
			req.Output = os.Stdout
		}

		if err := runner.Build(ctx, req); err != nil {
			logger.Error("Failed to build image", "error", err)
			cleanup()
			os.Exit(1)
		}

		fmt.Printf("✓ Built %v\n", tags)
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.AddCommand(imageBuildCmd)
	imageBuildCmd.Flags().StringSliceP("tag", "t", nil, "Image tag (repeatable, default IMAGE or hubspot-booking-api:latest)")
	imageBuildCmd.Flags().String("file", "Dockerfile", "Dockerfile path relative to the context")
	imageBuildCmd.Flags().StringArray("build-arg", nil, "Build-time variable KEY=VALUE (repeatable)")
	imageBuildCmd.Flags().Bool("no-cache", false, "Do not use cache when building the image")
	imageBuildCmd.Flags().BoolP("quiet", "q", false, "Suppress build output")
}
