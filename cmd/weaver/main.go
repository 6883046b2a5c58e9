// Package main implements the weaver CLI, the build step that weaves an
// assembly container in place or into a new output.
package main

import (
	"os"

	"github.com/l3aro/go-weaver/cmd/weaver/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (" + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`weaver version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
