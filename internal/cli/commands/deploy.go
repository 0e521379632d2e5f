package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mlhmz/hubspot-booking-api/internal/database"
	"github.com/mlhmz/hubspot-booking-api/internal/deploy"
	"github.com/mlhmz/hubspot-booking-api/internal/service"
	"github.com/spf13/cobra"
)

// Helper function to initialize services for deploy commands
func initializeServices() (*deploy.Runner, func()) {
	db, err := database.New(cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	dockerService, err := service.NewDockerService(logger)
	if err != nil {
		db.Close()
		logger.Error("Failed to initialize Docker service", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dockerService.Ping(pingCtx); err != nil {
		dockerService.Close()
		db.Close()
		logger.Error("Docker daemon is not reachable", "error", err)
		os.Exit(1)
	}

	repo := database.NewDeploymentRepository(db)
	runner := deploy.NewRunner(dockerService, repo, deploy.NewScanner(), logger)

	// Called both deferred and before os.Exit
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			dockerService.Close()
			db.Close()
		})
	}

	return runner, cleanup
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func requestFromFlags(cmd *cobra.Command) deploy.Request {
	image, _ := cmd.Flags().GetString("image")
	name, _ := cmd.Flags().GetString("name")
	envFile, _ := cmd.Flags().GetString("env-file")
	hostIP, _ := cmd.Flags().GetString("host-ip")
	hostPort, _ := cmd.Flags().GetInt("host-port")
	containerPort, _ := cmd.Flags().GetInt("container-port")
	skipPull, _ := cmd.Flags().GetBool("skip-pull")

	if !cmd.Flags().Changed("image") {
		image = cfg.Image
	}
	if !cmd.Flags().Changed("name") {
		name = cfg.ContainerName
	}
	if !cmd.Flags().Changed("env-file") {
		envFile = cfg.EnvFile
	}
	if !cmd.Flags().Changed("host-port") {
		hostPort = cfg.HostPort
	}

	return deploy.Request{
		Image:    image,
		Name:     name,
		EnvFile:  envFile,
		HostIP:   hostIP,
		SkipPull: skipPull,
		Mapping: deploy.PortMapping{
			HostPort:      hostPort,
			ContainerPort: containerPort,
		},
	}
}

func reportCheckError(err error) {
	var mismatch *deploy.PortMismatchError
	if errors.As(err, &mismatch) {
		logger.Error("Port configuration defect",
			"mapping", mismatch.Mapping.String(),
			"service_port", mismatch.AppPort,
			"exposed", mismatch.Exposed,
		)
		fmt.Fprintf(os.Stderr, "✗ %s\n  Publish the container port the service listens on, e.g. --host-port %d --container-port %d\n",
			mismatch, mismatch.Mapping.HostPort, mismatch.AppPort)
		return
	}
	logger.Error("Deployment check failed", "error", err)
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the service image on this Docker host",
	Long:  `Pull and run the service container, check its port configuration, stop it and inspect past runs.`,
}

var deployRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Pull the latest image and run it",
	Long: `Pull the latest published image and run it with one published port and an
environment file. The container is removed when it exits.

In the foreground, Ctrl+C stops the container.`,
	Example: `  # Publish on 8080 using ./.env
  hubspot-booking-api deploy run

  # Publish on host port 8000 while the service keeps listening on 8080
  hubspot-booking-api deploy run --host-port 8000

  # Run in the background
  hubspot-booking-api deploy run --image rtodea/hubspot-booking-api:latest --detach`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		req := requestFromFlags(cmd)
		req.Detach, _ = cmd.Flags().GetBool("detach")
		stopTimeout, _ := cmd.Flags().GetDuration("stop-timeout")
		req.StopTimeout = stopTimeout
		if follow, _ := cmd.Flags().GetBool("follow"); follow && !req.Detach {
			req.Stdout = os.Stdout
			req.Stderr = os.Stderr
		}

		ctx, cancel := signalContext()
		defer cancel()

		runner, cleanup := initializeServices()
		defer cleanup()

		res, err := runner.Run(ctx, req)
		if err != nil {
			if res == nil {
				reportCheckError(err)
			} else {
				logger.Error("Deployment failed", "id", res.Deployment.ID, "error", err)
			}
			cleanup()
			os.Exit(1)
		}

		if req.Detach {
			fmt.Printf("✓ Deployment %s running in container %s\n", res.Deployment.ID, shortID(res.Deployment.ContainerID))
			fmt.Printf("  http://localhost:%d/availability\n", req.Mapping.HostPort)
			fmt.Printf("\nUse 'hubspot-booking-api deploy stop %s' to stop it.\n", res.Deployment.ID)
			return
		}

		if res.ExitCode != 0 {
			cleanup()
			os.Exit(int(res.ExitCode))
		}
	},
}

var deployCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the port mapping and environment file without running",
	Long: `Pull the image and verify that the published container port is the port the
service binds and the image exposes, that the host port is free and that the
environment file parses. Exits non-zero on any defect.`,
	Example: `  hubspot-booking-api deploy check --host-port 8000`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		req := requestFromFlags(cmd)

		runner, cleanup := initializeServices()
		defer cleanup()

		report, err := runner.Check(context.Background(), req)
		if err != nil {
			reportCheckError(err)
			cleanup()
			os.Exit(1)
		}

		fmt.Printf("✓ %s\n\n", report.Image.Familiar())
		fmt.Printf("Mapping:        %s\n", report.Mapping)
		fmt.Printf("Service port:   %d\n", report.AppPort)
		fmt.Printf("Exposed ports:  %v\n", report.Exposed)
		fmt.Printf("Env variables:  %d\n", len(report.Env))
	},
}

var deployStopCmd = &cobra.Command{
	Use:     "stop <deployment-id>",
	Short:   "Stop a detached deployment",
	Example: `  hubspot-booking-api deploy stop 3f1c...`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		timeout, _ := cmd.Flags().GetDuration("timeout")

		runner, cleanup := initializeServices()
		defer cleanup()

		logger.Info("Stopping deployment", "id", id)
		if _, err := runner.Stop(context.Background(), id, timeout); err != nil {
			logger.Error("Failed to stop deployment", "id", id, "error", err)
			cleanup()
			os.Exit(1)
		}

		fmt.Printf("✓ Deployment %s stopped\n", id)
	},
}

var deployHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded deployments",
	Example: `  hubspot-booking-api deploy history
  hubspot-booking-api deploy history --output json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		outputFormat, _ := cmd.Flags().GetString("output")

		runner, cleanup := initializeServices()
		defer cleanup()

		deployments, err := runner.History(context.Background())
		if err != nil {
			logger.Error("Failed to list deployments", "error", err)
			cleanup()
			os.Exit(1)
		}

		if outputFormat == "json" {
			data, _ := json.MarshalIndent(deployments, "", "  ")
			fmt.Println(string(data))
			return
		}

		if len(deployments) == 0 {
			fmt.Println("No deployments found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tIMAGE\tPORTS\tSTATUS\tEXIT\tCREATED")
		for _, d := range deployments {
			exit := "-"
			if d.ExitCode != nil {
				exit = fmt.Sprintf("%d", *d.ExitCode)
			}
			fmt.Fprintf(w, "%s\t%s\t%d:%d\t%s\t%s\t%s\n",
				d.ID[:8]+"...",
				d.Image,
				d.HostPort,
				d.ContainerPort,
				d.Status,
				exit,
				d.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		w.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("image", "i", "", "Image reference (default IMAGE or hubspot-booking-api:latest)")
	cmd.Flags().StringP("name", "n", "", "Container name (default CONTAINER_NAME)")
	cmd.Flags().StringP("env-file", "e", "", "Environment file passed to the container (default ENV_FILE or .env)")
	cmd.Flags().String("host-ip", "", "Host interface to bind (default all)")
	cmd.Flags().IntP("host-port", "p", 0, "Host port (default HOST_PORT or 8080)")
	cmd.Flags().Int("container-port", deploy.DefaultAppPort, "Container port the service listens on")
	cmd.Flags().Bool("skip-pull", false, "Use the local image if present instead of pulling")
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.AddCommand(deployRunCmd)
	addRunFlags(deployRunCmd)
	deployRunCmd.Flags().BoolP("detach", "d", false, "Run in the background")
	deployRunCmd.Flags().Bool("follow", true, "Stream container output while running in the foreground")
	deployRunCmd.Flags().Duration("stop-timeout", deploy.DefaultStopTimeout, "Grace period before the container is killed on Ctrl+C")

	deployCmd.AddCommand(deployCheckCmd)
	addRunFlags(deployCheckCmd)

	deployCmd.AddCommand(deployStopCmd)
	deployStopCmd.Flags().Duration("timeout", deploy.DefaultStopTimeout, "Grace period before the container is killed")

	deployCmd.AddCommand(deployHistoryCmd)
	deployHistoryCmd.Flags().StringP("output", "o", "table", "Output format (table, json)")
}
