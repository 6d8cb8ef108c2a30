package main

import (
	"os"

	"github.com/wonny/aegis-committee/cmd/committee/commands"
)

// main is the entry point for the committee CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/committee [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
