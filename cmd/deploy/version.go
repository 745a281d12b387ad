package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// These will be set during build with -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func versionString() string {
	if version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate)
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "deploy version %s\n", version)
			fmt.Fprintf(a.stdout, "  Git commit:  %s\n", gitCommit)
			fmt.Fprintf(a.stdout, "  Build date:  %s\n", buildDate)
			fmt.Fprintf(a.stdout, "  Go version:  %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "  OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
