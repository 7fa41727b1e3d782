// Package main provides the cohort seeding CLI.
//
// Usage:
//
//	cohortseed [flags] <command>
//
// Commands:
//
//	seed   - Load impostor embeddings into the cohort index
//	stats  - Report the cohort index size
//
// The vector store and collection names come from the same config/<env>.yaml
// the API server reads (ENV selects the file).
package main

import (
	"fmt"
	"os"

	"github.com/kailas-cloud/voicegate/cmd/cohortseed/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
