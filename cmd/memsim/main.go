// Package main provides the entry point for memsim, a cycle-accounting
// simulator for a two-level direct-mapped write-back cache hierarchy.
package main

import (
	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
