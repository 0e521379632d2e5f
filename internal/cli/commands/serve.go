package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mlhmz/hubspot-booking-api/internal/api/handlers"
	"github.com/mlhmz/hubspot-booking-api/internal/api/routes"
	"github.com/mlhmz/hubspot-booking-api/internal/availability"
	"github.com/mlhmz/hubspot-booking-api/internal/hubspot"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Start the availability API server",
	Long: `Start the HTTP API that serves HubSpot meeting availability.

The server provides Swagger documentation at /docs/.
If no port is specified, it uses the API_PORT environment variable or defaults to 8080.`,
	Example: `  # Start on default port (8080 or API_PORT)
  hubspot-booking-api serve

  # Start on specific port
  hubspot-booking-api serve 9000`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		port := cfg.Port
		if len(args) > 0 {
			parsedPort, err := strconv.Atoi(args[0])
			if err != nil {
				logger.Error("Invalid port number", "port", args[0], "error", err)
				os.Exit(1)
			}
			port = parsedPort
		}

		businessHours := availability.DefaultBusinessHours()
		businessHours.StartHour = cfg.BusinessStartHour
		businessHours.EndHour = cfg.BusinessEndHour
		if err := businessHours.Validate(); err != nil {
			logger.Error("Invalid business hours configuration", "error", err)
			os.Exit(1)
		}

		if _, err := availability.LoadLocation(cfg.DefaultTimezone); err != nil {
			logger.Error("Invalid default timezone", "timezone", cfg.DefaultTimezone, "error", err)
			os.Exit(1)
		}

		if cfg.HubSpotAPIKey == "" {
			// Keep serving so the health check stays up; /availability answers 500.
			logger.Error("HUBSPOT_API_KEY environment variable not set, availability requests will fail")
		}

		logger.Info("Starting HubSpot Availability API",
			"port", port,
			"default_timezone", cfg.DefaultTimezone,
			"business_hours", fmt.Sprintf("%02d:00-%02d:00 Mon-Fri", businessHours.StartHour, businessHours.EndHour),
		)

		client := hubspot.NewClient(cfg.HubSpotBaseURL, cfg.HubSpotAPIKey, cfg.HubSpotTimeout, logger)
		availabilityHandler := handlers.NewAvailabilityHandler(client, cfg.DefaultTimezone, businessHours, logger)
		router := routes.NewRouter(availabilityHandler, logger)

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Channel to listen for errors coming from the listener
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("API server listening", "port", port, "address", srv.Addr)
			logger.Info("Swagger UI available", "url", fmt.Sprintf("http://localhost:%d/docs/", port))
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt signal to terminate server gracefully
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			logger.Error("Error starting server", "error", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Error during shutdown", "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("Could not stop server gracefully", "error", err)
					os.Exit(1)
				}
			}

			logger.Info("Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
