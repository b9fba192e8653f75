package main

import (
	"context"
	"os"

	"github.com/ragassist/cli/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := cmd.Execute(context.Background(), cmd.Metadata{Version: version, Commit: commit}); err != nil {
		os.Exit(1)
	}
}
