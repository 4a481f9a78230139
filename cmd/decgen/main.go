// Package main provides the decgen command line.
package main

import (
	"os"

	"github.com/sarchlab/decgen/internal/cmd"
)

func main() {
	if err := cmd.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
