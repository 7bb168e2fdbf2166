package main

import (
	"os"

	"github.com/go-delve/setproctitle/cmd/setproctitle/cmds"
	"github.com/go-delve/setproctitle/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.SetProcTitleVersion.Build = Build
	}

	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
