package main

import (
	"os"

	"github.com/wonny/miyagi/cmd/miyagi/commands"
)

// main is the entry point for the Miyagi CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/miyagi [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
