// Package main provides the entry point for the taskvault CLI.
package main

import (
	"os"

	"github.com/taskvault/taskvault/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
