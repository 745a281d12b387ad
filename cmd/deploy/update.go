package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deploy/internal/selfupdate"
)

func newUpdateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Replace this executable with the latest release",
		Long: `Download the latest release built for this OS and architecture, verify
its published SHA-256 checksum, and swap it in place of the running
executable. Nothing is changed when already on the latest version.`,
		Args: cobra.NoArgs,
		RunE: a.runUpdate,
	}
}

func (a *app) runUpdate(cmd *cobra.Command, _ []string) error {
	client, err := a.newClient()
	if err != nil {
		return err
	}

	updater := selfupdate.NewUpdater(client, a.cfg.ReleaseRepository(), selfupdate.Options{
		BinaryName: a.cfg.BinaryName,
		Executable: a.executable,
		Logger:     a.logger,
	})

	out, err := updater.Update(cmd.Context(), version, selfupdate.PlatformTag())
	if err != nil {
		a.printer.Fail("Updating " + a.cfg.BinaryName)
		return err
	}

	status := version
	if out.Replaced {
		status = out.NewVersion
		a.printer.OK(fmt.Sprintf("Updating %s from %s to %s", a.cfg.BinaryName, out.PreviousVersion, out.NewVersion))
		if !out.Verified {
			a.printer.Warn("Checksum unavailable, installed unverified")
		}
		if out.Pending {
			a.printer.Detail("previous executable is removed on the next run")
		}
		if err := a.printer.Markdown(out.ReleaseNotes); err != nil {
			a.logger.Warn("could not render release notes", "error", err)
		}
	} else {
		a.printer.OK(fmt.Sprintf("Already on the latest version (%s)", out.NewVersion))
	}

	a.printer.Info("Update status: `%s`!", status)
	return nil
}
