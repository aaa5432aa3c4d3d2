// Package main provides the entry point for memsim.
// memsim simulates a two-level direct-mapped write-back cache hierarchy.
//
// For the full CLI, use: go run ./cmd/memsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("memsim - Memory Hierarchy Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: memsim <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run       Replay a trace and write statistics and final state")
	fmt.Println("  sweep     Rerun a trace over a range of block sizes")
	fmt.Println("  generate  Write a synthetic trace")
	fmt.Println("  config    Validate and print the timing configuration")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/memsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/memsim' instead.")
	}
}
