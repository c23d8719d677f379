// =============================================================================
// SEPA Direct Debit Generator - Main Entry Point
// =============================================================================
//
// This is the main entry point for the lastschrift CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   lastschrift generate      - Turn member exports into pain.008 files
//   lastschrift validate      - Check an export and the club configuration
//   lastschrift serve         - Start the HTTP API
//   lastschrift version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Ingest, mapping, validation and document generation
//   - pkg/           : Shared file handling utilities
//   - profiles/      : Per-club YAML profiles
//
// =============================================================================

package main

import (
	"github.com/clubsepa/lastschrift/cmd"
)

func main() {
	cmd.Execute()
}
