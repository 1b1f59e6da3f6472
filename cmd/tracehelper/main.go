package main

import (
	"os"

	"github.com/tracehelper/tracehelper/internal/cli"
	"github.com/tracehelper/tracehelper/internal/cli/helpers"
)

func main() {
	if err := cli.Execute(); err != nil {
		helpers.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
