// Package main provides the mountfs CLI entry point.
// mountfs is a command line front end for mounted internal and external storage.
package main

import (
	"fmt"
	"os"

	"github.com/cloudfs/mountfs/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
