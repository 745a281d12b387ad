// Package deploy resolves what to deploy, checks commit status, and
// creates deployments on the platform.
//
// A run goes through three stages, each attributing its errors with
// failure.At:
//
//	resolution    RefResolver: repository and ref from flags or the checkout
//	status check  StatusGate: combined status must be green or absent
//	submission    Submitter: default-branch pinning and the create call
//
// A Watcher can then follow the created deployment to completion.
package deploy

import (
	"context"
	"log/slog"

	"deploy/internal/failure"
	"deploy/internal/platform"
)

// Input is what the user asked for. Empty Repository or Ref are read from
// the local checkout.
type Input struct {
	Repository  string
	Ref         string
	Environment string
	Force       bool
	Description string
}

// Result describes a completed run.
type Result struct {
	Request Request
	// Status is StatusNoStatus and Checked false when Force skipped the query.
	Status  StatusResult
	Checked bool
	Outcome *Outcome
	// Previous is the environment's last deployment before this one, if
	// it could be found.
	Previous *platform.DeploymentRecord
}

// Deployer runs resolution, status check and submission in order.
type Deployer struct {
	resolver  *RefResolver
	gate      *StatusGate
	submitter *Submitter
	history   HistoryClient
	logger    *slog.Logger
}

// NewDeployer wires the stages together. history may be nil.
func NewDeployer(resolver *RefResolver, gate *StatusGate, submitter *Submitter, history HistoryClient, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		resolver:  resolver,
		gate:      gate,
		submitter: submitter,
		history:   history,
		logger:    logger,
	}
}

// Run performs one deployment. A platform refusal is reported through
// Result.Outcome.Accepted, not as an error.
func (d *Deployer) Run(ctx context.Context, in Input) (*Result, error) {
	repo, ref, err := d.resolver.Resolve(ctx, in.Repository, in.Ref)
	if err != nil {
		return nil, failure.At(failure.StageResolution, err)
	}

	req := Request{
		Repository:  repo,
		Ref:         ref,
		Environment: in.Environment,
		Force:       in.Force,
		Description: in.Description,
	}
	if err := req.Validate(); err != nil {
		return nil, failure.At(failure.StageResolution, err)
	}

	d.logger.Info("resolved deployment", "repository", repo, "ref", ref, "environment", in.Environment)
	result := &Result{Request: req}

	if in.Force {
		d.logger.Warn("skipping commit status check", "ref", ref)
	} else {
		report, err := d.gate.Inspect(ctx, repo, ref)
		if err != nil {
			return nil, failure.At(failure.StageStatusCheck, err)
		}
		result.Status = report.Result
		result.Checked = true
		// deploy the commit that was checked, not wherever the branch
		// points by submission time
		req.SHA = report.SHA
		result.Request = req
		d.logger.Info("commit status", "ref", ref, "status", report.Result.String())

		if !Permits(report.Result, false) {
			return result, failure.At(failure.StageStatusCheck, &failure.BlockedError{
				Ref:      ref,
				Result:   report.Result.String(),
				Contexts: report.Blocking,
			})
		}
	}

	if d.history != nil {
		prev, err := Previous(ctx, d.history, repo, in.Environment)
		if err != nil {
			d.logger.Warn("could not look up previous deployment", "environment", in.Environment, "error", err)
		}
		result.Previous = prev
	}

	outcome, err := d.submitter.Submit(ctx, req)
	if err != nil {
		return result, failure.At(failure.StageSubmission, err)
	}
	result.Outcome = outcome

	if outcome.Accepted {
		d.logger.Info("deployment accepted", "id", outcome.DeploymentID, "sha", outcome.SHA)
	} else {
		d.logger.Warn("deployment refused", "message", outcome.Message)
	}
	return result, nil
}
