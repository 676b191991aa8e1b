package main

import (
	"os"

	"softarchitect/apps/ingest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
