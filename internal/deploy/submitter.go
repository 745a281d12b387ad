package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"deploy/internal/failure"
	"deploy/internal/platform"
	"deploy/internal/security"
)

// DefaultTask is the deployment task sent when none is given.
const DefaultTask = "deploy"

// Request is one deployment to submit.
type Request struct {
	Repository  string
	Ref         string
	Environment string
	// Force bypasses commit status checks, both locally and on the platform.
	Force       bool
	Description string
	AutoMerge   bool
	Task        string
	// SHA, when set, is the commit a default-branch ref is pinned to
	// instead of looking the branch up again.
	SHA string
}

// Validate checks the request invariants.
func (r Request) Validate() error {
	if err := security.ValidateRepository(r.Repository); err != nil {
		return &failure.ConfigurationError{Msg: "invalid repository", Err: err}
	}
	if err := security.ValidateRef(r.Ref); err != nil {
		return &failure.ConfigurationError{Msg: "invalid ref", Err: err}
	}
	if err := security.ValidateEnvironment(r.Environment); err != nil {
		return &failure.ConfigurationError{Msg: "invalid environment", Err: err}
	}
	return nil
}

// Outcome is the platform's answer to a submission.
type Outcome struct {
	// Accepted is false when the platform refused the deployment (409);
	// Message then carries its reason verbatim.
	Accepted     bool
	DeploymentID string
	Message      string
	// SHA is the ref actually submitted: the pinned commit when the
	// request named the default branch, otherwise the ref as given.
	SHA         string
	Environment string
}

// DeploymentClient is the part of the platform the submitter needs.
type DeploymentClient interface {
	DefaultBranch(ctx context.Context, repo string) (string, error)
	CommitSHA(ctx context.Context, repo, ref string) (string, error)
	CreateDeployment(ctx context.Context, repo string, spec platform.DeploymentSpec) (*platform.CreatedDeployment, error)
}

// Submitter creates deployments.
type Submitter struct {
	client DeploymentClient
	logger *slog.Logger
}

// NewSubmitter returns a Submitter backed by client.
func NewSubmitter(client DeploymentClient, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{client: client, logger: logger}
}

// Submit creates one deployment for req. Every call creates a new record.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref, err := s.pin(ctx, req)
	if err != nil {
		return nil, err
	}

	spec := platform.DeploymentSpec{
		Ref:         ref,
		Environment: req.Environment,
		Task:        req.Task,
		Description: req.Description,
		AutoMerge:   req.AutoMerge,
	}
	if spec.Task == "" {
		spec.Task = DefaultTask
	}
	if spec.Description == "" {
		spec.Description = fmt.Sprintf("Deploy %s to %s", req.Ref, req.Environment)
	}
	if req.Force {
		spec.RequiredContexts = []string{}
	}

	s.logger.Debug("creating deployment",
		"repository", req.Repository,
		"ref", ref,
		"environment", req.Environment,
		"force", req.Force,
	)

	created, err := s.client.CreateDeployment(ctx, req.Repository, spec)
	if err != nil {
		var apiErr *failure.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return &Outcome{
				Accepted:    false,
				Message:     apiErr.Body,
				SHA:         ref,
				Environment: req.Environment,
			}, nil
		}
		return nil, err
	}

	out := &Outcome{
		Accepted:    true,
		Message:     created.Message,
		SHA:         ref,
		Environment: req.Environment,
	}
	if created.ID != 0 {
		out.DeploymentID = strconv.FormatInt(created.ID, 10)
	}
	return out, nil
}

// pin resolves the ref to a commit SHA when it names the default branch,
// so the deployment targets the commit that was current when it was asked
// for. req.SHA is used when set. Any other ref, including an older commit
// of the default branch, is submitted as given.
func (s *Submitter) pin(ctx context.Context, req Request) (string, error) {
	repo, ref := req.Repository, req.Ref
	defaultBranch, err := s.client.DefaultBranch(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("looking up default branch of %s: %w", repo, err)
	}

	if strings.TrimPrefix(ref, "refs/heads/") != defaultBranch {
		return ref, nil
	}
	if req.SHA != "" {
		s.logger.Debug("pinned default branch to checked commit", "ref", ref, "sha", req.SHA)
		return req.SHA, nil
	}

	sha, err := s.client.CommitSHA(ctx, repo, ref)
	if err != nil {
		return "", fmt.Errorf("resolving %s to a commit: %w", ref, err)
	}
	s.logger.Debug("pinned default branch", "ref", ref, "sha", sha)
	return sha, nil
}
