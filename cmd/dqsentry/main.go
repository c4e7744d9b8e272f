// Package main is the dqsentry entrypoint.
package main

import (
	"os"

	"github.com/leapstack-labs/dqsentry/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
