package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"deploy/internal/failure"
	"deploy/internal/selfupdate"
)

func main() {
	if exe, err := os.Executable(); err == nil {
		selfupdate.CleanupStale(exe)
	}

	a := newApp(os.Stdout, os.Stderr)
	if err := fang.Execute(
		context.Background(),
		newRootCommand(a),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(failure.ExitCode(err))
	}
}
