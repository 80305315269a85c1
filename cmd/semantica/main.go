// Package main is the entry point for the semantica CLI.
package main

import (
	"os"

	"github.com/semantica-dev/semantica/cmd/semantica/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
