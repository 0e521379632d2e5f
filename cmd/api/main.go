package main

import (
	"os"
	_ "time/tzdata"

	"github.com/mlhmz/hubspot-booking-api/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
