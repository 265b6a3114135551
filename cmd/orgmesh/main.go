package main

import (
	"os"

	"github.com/orgmesh-labs/orgmesh/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
