package main

import (
	"os"

	"github.com/gokatarajesh/challenge-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
