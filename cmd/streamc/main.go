package main

import (
	"os"

	"github.com/birdayz/streamc/cmd/streamc/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
