// Package main is the entry point for the assisted-helper CLI.
package main

import (
	"os"

	"github.com/openshift/assisted-test-framework/cmd/assisted-helper/commands"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		resources.LogLevel("error", "%v", err)
		os.Exit(1)
	}
}
