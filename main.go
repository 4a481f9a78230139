// Package main provides the entry point for decgen.
// decgen builds instruction decoders from instruction set descriptions.
//
// For the full CLI, use: go run ./cmd/decgen
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("decgen - instruction decoder generator")
	fmt.Println("")
	fmt.Println("Usage: decgen [options] <command> <description.yaml> ...")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  tree     Display the decision tree")
	fmt.Println("  plan     List the decoder operations")
	fmt.Println("  stats    Print tree and instruction size statistics")
	fmt.Println("  decode   Decode an ELF file or raw image")
	fmt.Println("  encode   Encode one instruction")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/decgen' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/decgen' instead.")
	}
}
