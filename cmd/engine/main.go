package main

import (
	"os"

	"github.com/ignitex/engine/cmd/engine/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
