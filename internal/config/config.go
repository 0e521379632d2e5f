package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port int

	HubSpotAPIKey   string
	HubSpotBaseURL  string
	HubSpotTimeout  time.Duration
	DefaultTimezone string

	BusinessStartHour int
	BusinessEndHour   int

	Image         string
	ContainerName string
	EnvFile       string
	HostPort      int
	DatabasePath  string
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	hubspotBaseURL := os.Getenv("HUBSPOT_BASE_URL")
	if hubspotBaseURL == "" {
		hubspotBaseURL = "https://api.hubapi.com"
	}

	hubspotTimeout := 10 * time.Second
	if envTimeout := os.Getenv("HUBSPOT_TIMEOUT"); envTimeout != "" {
		if d, err := time.ParseDuration(envTimeout); err == nil {
			hubspotTimeout = d
		}
	}

	defaultTimezone := os.Getenv("DEFAULT_TIMEZONE")
	if defaultTimezone == "" {
		defaultTimezone = "America/Mexico_City"
	}

	image := os.Getenv("IMAGE")
	if image == "" {
		image = "hubspot-booking-api:latest"
	}

	containerName := os.Getenv("CONTAINER_NAME")
	if containerName == "" {
		containerName = "hubspot-booking-api"
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	databasePath := os.Getenv("DATABASE_PATH")
	if databasePath == "" {
		databasePath = "./data/deployments.db"
	}

	return &Config{
		Port:              intFromEnv("API_PORT", 8080),
		HubSpotAPIKey:     os.Getenv("HUBSPOT_API_KEY"),
		HubSpotBaseURL:    hubspotBaseURL,
		HubSpotTimeout:    hubspotTimeout,
		DefaultTimezone:   defaultTimezone,
		BusinessStartHour: intFromEnv("BUSINESS_START_HOUR", 9),
		BusinessEndHour:   intFromEnv("BUSINESS_END_HOUR", 17),
		Image:             image,
		ContainerName:     containerName,
		EnvFile:           envFile,
		HostPort:          intFromEnv("HOST_PORT", 8080),
		DatabasePath:      databasePath,
	}, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
