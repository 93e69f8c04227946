package main

import (
	"os"

	"github.com/memkeep/memkeep/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
