package main

import (
	"os"

	"github.com/rustyorb/auto-chat/cli"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	os.Exit(cli.Execute(Version))
}
