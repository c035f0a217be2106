package main

import (
	"os"

	"github.com/goliatone/go-formschema/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
