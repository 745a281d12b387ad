package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"deploy/internal/failure"
	"deploy/internal/security"
	"deploy/pkg/cmdutil"
)

const defaultRemote = "origin"

// GitRunner runs read-only git commands in the working checkout and
// returns trimmed stdout.
type GitRunner interface {
	Git(ctx context.Context, args ...string) (string, error)
}

type execGit struct {
	dir     string
	timeout time.Duration
	policy  *security.CommandPolicy
}

// NewGitRunner returns a GitRunner that shells out to git in dir, bounding
// each call by timeout.
func NewGitRunner(dir string, timeout time.Duration) GitRunner {
	return &execGit{dir: dir, timeout: timeout, policy: security.NewGitPolicy()}
}

func (g *execGit) Git(ctx context.Context, args ...string) (string, error) {
	parts := append([]string{"git"}, args...)
	if err := g.policy.Validate(parts); err != nil {
		return "", err
	}
	return cmdutil.Output(ctx, g.dir, g.timeout, parts)
}

// RefResolver derives the repository and ref to deploy, either from
// explicit values or from the local checkout.
type RefResolver struct {
	git  GitRunner
	host string
}

// NewRefResolver returns a resolver that accepts remotes on host.
func NewRefResolver(git GitRunner, host string) *RefResolver {
	return &RefResolver{git: git, host: host}
}

// Resolve returns the effective repository and ref. Explicit values win;
// missing ones are read from the checkout.
func (r *RefResolver) Resolve(ctx context.Context, explicitRepo, explicitRef string) (string, string, error) {
	repo, err := r.Repository(ctx, explicitRepo)
	if err != nil {
		return "", "", err
	}
	ref, err := r.Ref(ctx, explicitRef)
	if err != nil {
		return "", "", err
	}
	return repo, ref, nil
}

// Repository returns explicit after validating it, or the owner/name of
// the checkout's remote.
func (r *RefResolver) Repository(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		if err := security.ValidateRepository(explicit); err != nil {
			return "", &failure.ConfigurationError{Msg: "invalid repository", Err: err}
		}
		return explicit, nil
	}

	remote, err := r.pickRemote(ctx)
	if err != nil {
		return "", err
	}

	rawURL, err := r.git.Git(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", gitFailure(fmt.Sprintf("reading URL of remote %q", remote), err)
	}

	return ParseRemoteURL(rawURL, r.host)
}

func (r *RefResolver) pickRemote(ctx context.Context) (string, error) {
	out, err := r.git.Git(ctx, "remote")
	if err != nil {
		return "", gitFailure("listing remotes", err)
	}

	remotes := strings.Fields(out)
	switch {
	case len(remotes) == 0:
		return "", failure.Configuration("no remote configured in this checkout; pass owner/repo explicitly")
	case len(remotes) == 1:
		return remotes[0], nil
	}

	for _, name := range remotes {
		if name == defaultRemote {
			return name, nil
		}
	}
	return "", failure.Configuration("ambiguous remote: found %s and none is named %q; pass owner/repo explicitly",
		strings.Join(remotes, ", "), defaultRemote)
}

// Ref returns explicit after validating it, or the short name of the
// checked-out branch.
func (r *RefResolver) Ref(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		if err := security.ValidateRef(explicit); err != nil {
			return "", &failure.ConfigurationError{Msg: "invalid ref", Err: err}
		}
		return explicit, nil
	}

	branch, err := r.git.Git(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		var exitErr *cmdutil.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
			return "", failure.Configuration("HEAD is detached; pass --ref to choose what to deploy")
		}
		return "", gitFailure("reading current branch", err)
	}
	branch = strings.TrimPrefix(branch, "refs/heads/")
	if branch == "" {
		return "", failure.Configuration("HEAD is detached; pass --ref to choose what to deploy")
	}
	return branch, nil
}

// ParseRemoteURL extracts owner/name from a git remote URL on host. It
// accepts scp-style (git@host:owner/repo.git), ssh:// and https:// forms.
func ParseRemoteURL(rawURL, host string) (string, error) {
	ep, err := transport.NewEndpoint(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &failure.ConfigurationError{Msg: "unparseable remote URL " + security.RedactURL(rawURL), Err: err}
	}
	if !strings.EqualFold(ep.Host, host) {
		return "", failure.Configuration("remote %s is not a %s remote", security.RedactURL(rawURL), host)
	}
	repo, err := security.RepositoryFromPath(ep.Path)
	if err != nil {
		return "", &failure.ConfigurationError{Msg: "remote " + security.RedactURL(rawURL), Err: err}
	}
	return repo, nil
}

// gitFailure turns a git error into a ConfigurationError: every git failure
// here means the working directory cannot tell us what to deploy.
func gitFailure(what string, err error) error {
	var exitErr *cmdutil.ExitError
	if errors.As(err, &exitErr) && strings.Contains(exitErr.Stderr, "not a git repository") {
		return failure.Configuration("%s: not a git repository; pass owner/repo and --ref explicitly", what)
	}
	return &failure.ConfigurationError{Msg: what, Err: err}
}
