package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"deploy/internal/deploy"
	"deploy/internal/failure"
	"deploy/internal/platform"
)

// rejectedError is returned when the platform refused the deployment.
type rejectedError struct {
	message string
}

func (e *rejectedError) Error() string {
	return "deployment rejected: " + e.message
}

func addDeployFlags(f *pflag.FlagSet) {
	f.StringP("env", "e", "", "environment to deploy to (alias: --environment)")
	f.StringP("ref", "r", "", "branch, tag or commit to deploy (aliases: --branch, --commit, --tag); defaults to the current branch")
	f.BoolP("force", "f", false, "deploy even when commit status checks have not passed")
	f.BoolP("detached", "d", false, "return once the deployment is created instead of waiting for it to finish")
	f.String("description", "", "deployment description")
}

func (a *app) runDeploy(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	env, _ := flags.GetString("env")
	ref, _ := flags.GetString("ref")
	force, _ := flags.GetBool("force")
	detached, _ := flags.GetBool("detached")

	var repo string
	if len(args) == 1 {
		repo = args[0]
	}

	if env == "" {
		return failure.Configuration("--env is required")
	}
	if repo != "" && ref == "" {
		return failure.Configuration("--ref is required when a repository is given")
	}
	if err := a.cfg.RequireToken(); err != nil {
		return err
	}

	client, err := a.newClient()
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return failure.At(failure.StageResolution, &failure.ConfigurationError{Msg: "reading working directory", Err: err})
	}

	deployer := deploy.NewDeployer(
		deploy.NewRefResolver(a.newGit(wd, a.cfg.GitTimeout), a.cfg.GitHubHost),
		deploy.NewStatusGate(client),
		deploy.NewSubmitter(client, a.logger),
		client,
		a.logger,
	)

	result, err := deployer.Run(cmd.Context(), deploy.Input{
		Repository:  repo,
		Ref:         ref,
		Environment: env,
		Force:       force,
		Description: a.cfg.Description,
	})
	if err != nil {
		var blocked *failure.BlockedError
		if errors.As(err, &blocked) {
			a.printer.Fail(fmt.Sprintf("Commit status of %s: %s", blocked.Ref, blocked.Result))
		}
		return err
	}

	req := result.Request
	if result.Checked {
		a.printer.OK(fmt.Sprintf("Commit status of %s: %s", req.Ref, result.Status))
	} else {
		a.printer.Warn("Commit status check skipped (--force)")
	}

	outcome := result.Outcome
	if !outcome.Accepted {
		a.printer.Fail(fmt.Sprintf("Deploying %s@%s to %s", req.Repository, req.Ref, req.Environment))
		return &rejectedError{message: outcome.Message}
	}

	a.printer.OK(fmt.Sprintf("Deploying %s@%s to %s", req.Repository, req.Ref, req.Environment))
	if outcome.DeploymentID != "" {
		a.printer.Detail("deployment %s, ref %s", outcome.DeploymentID, outcome.SHA)
	}
	if outcome.Message != "" {
		a.printer.Detail("%s", outcome.Message)
	}
	if prev := result.Previous; prev != nil && prev.SHA != "" && prev.SHA != outcome.SHA {
		a.printer.Detail("changes: %s", deploy.CompareURL(a.cfg.WebURL(), req.Repository, prev.SHA, outcome.SHA))
	}

	if detached || outcome.DeploymentID == "" {
		return nil
	}
	return a.watch(cmd, client, req.Repository, outcome.DeploymentID)
}

func (a *app) watch(cmd *cobra.Command, client *platform.Client, repo, deploymentID string) error {
	id, err := strconv.ParseInt(deploymentID, 10, 64)
	if err != nil {
		return failure.At(failure.StageWatch, fmt.Errorf("unexpected deployment id %q: %w", deploymentID, err))
	}

	watcher := deploy.NewWatcher(client, a.cfg.PollInterval, a.cfg.WatchTimeout, a.logger)
	watcher.OnChange(func(s platform.DeploymentState) {
		a.printer.Detail("%s", s.State)
	})

	final, err := watcher.Wait(cmd.Context(), repo, id)
	if err != nil {
		a.printer.Fail("Waiting for deployment " + deploymentID)
		return failure.At(failure.StageWatch, err)
	}

	a.printer.OK("Waiting for deployment " + deploymentID)
	if final.EnvironmentURL != "" {
		a.printer.Detail("live at %s", final.EnvironmentURL)
	}
	return nil
}
