// Package main is the entry point for the mindshare service.
package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/mindshare/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
