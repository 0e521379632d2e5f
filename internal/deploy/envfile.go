package deploy

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultAppPort is the port the service binds inside the container when
// API_PORT is not set.
const DefaultAppPort = 8080

// Env is the parsed content of an environment file.
type Env map[string]string

// LoadEnvFile parses a KEY=VALUE environment file. A missing file is an error.
func LoadEnvFile(path string) (Env, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("environment file %s: %w", path, err)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment file %s: %w", path, err)
	}
	return Env(env), nil
}

// List returns the variables as sorted KEY=VALUE pairs.
func (e Env) List() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e[k])
	}
	return out
}

// AppPort is the port the service will bind inside the container.
func (e Env) AppPort() (int, error) {
	v, ok := e["API_PORT"]
	if !ok || v == "" {
		return DefaultAppPort, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("API_PORT in environment file is not a number: %q", v)
	}
	return port, nil
}
