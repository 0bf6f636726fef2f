// Package main provides the entry point for the autoprice CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/autoprice/cmd/autoprice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
