package main

import (
	"os"

	"github.com/c21-japan/homemart-sub002/cmd/homemart/commands"
)

// main is the entry point for the homemart CLI
// ⭐ single CLI entry: go run ./cmd/homemart [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
