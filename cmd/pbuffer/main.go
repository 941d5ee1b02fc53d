// Package main provides the pbuffer CLI tool.
//
// Usage:
//
//	pbuffer run [flags]
//	pbuffer version
//
// The run command starts producers and consumers against a shared bounded
// buffer and reports whether every item was delivered exactly once.
package main

import (
	"fmt"
	"os"

	"github.com/FerroO2000/pbuffer/cmd/pbuffer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
