package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// DeployFile is the optional YAML deployment profile passed with --config.
// Zero values leave the environment-derived settings untouched.
type DeployFile struct {
	Image         string `mapstructure:"image"`
	ContainerName string `mapstructure:"container_name" validate:"omitempty,hostname_rfc1123"`
	EnvFile       string `mapstructure:"env_file"`
	HostPort      int    `mapstructure:"host_port" validate:"omitempty,min=1,max=65535"`
	DatabasePath  string `mapstructure:"database_path"`
}

// LoadDeployFile reads and validates a deployment profile.
func LoadDeployFile(path string) (*DeployFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("deploy file not found: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read deploy file: %w", err)
	}

	var df DeployFile
	if err := v.Unmarshal(&df); err != nil {
		return nil, fmt.Errorf("failed to parse deploy file: %w", err)
	}

	if err := validate.Struct(&df); err != nil {
		return nil, formatValidationError(err)
	}

	return &df, nil
}

// Apply overrides cfg with the non-zero fields of the profile.
func (df *DeployFile) Apply(cfg *Config) {
	if df.Image != "" {
		cfg.Image = df.Image
	}
	if df.ContainerName != "" {
		cfg.ContainerName = df.ContainerName
	}
	if df.EnvFile != "" {
		cfg.EnvFile = df.EnvFile
	}
	if df.HostPort != 0 {
		cfg.HostPort = df.HostPort
	}
	if df.DatabasePath != "" {
		cfg.DatabasePath = df.DatabasePath
	}
}

func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validation failed: %w", err)
	}

	var msgs []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be between 1 and 65535", e.Field()))
		case "hostname_rfc1123":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be a valid container name", e.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (%s)", e.Field(), e.Tag()))
		}
	}
	return fmt.Errorf("validation error: %s", strings.Join(msgs, "; "))
}
