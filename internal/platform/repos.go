package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v57/github"

	"deploy/internal/failure"
)

// CombinedStatus fetches the combined commit status for ref.
func (c *Client) CombinedStatus(ctx context.Context, repo, ref string) (*CombinedStatus, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	combined, resp, err := c.gh.Repositories.GetCombinedStatus(ctx, owner, name, ref, nil)
	c.logRateLimit(resp, "combined status")
	if err != nil {
		return nil, c.classify(fmt.Sprintf("status of %s@%s", repo, ref), resp, err)
	}

	out := &CombinedStatus{
		State:      combined.GetState(),
		SHA:        combined.GetSHA(),
		TotalCount: combined.GetTotalCount(),
	}
	for _, s := range combined.Statuses {
		out.Statuses = append(out.Statuses, CommitStatus{
			Context:     s.GetContext(),
			State:       s.GetState(),
			Description: s.GetDescription(),
			TargetURL:   s.GetTargetURL(),
		})
	}
	return out, nil
}

// DefaultBranch returns the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context, repo string) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	r, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	c.logRateLimit(resp, "repository")
	if err != nil {
		return "", c.classify("get "+repo, resp, err)
	}
	return r.GetDefaultBranch(), nil
}

// CommitSHA resolves ref to the commit it currently points at.
func (c *Client) CommitSHA(ctx context.Context, repo, ref string) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	sha, resp, err := c.gh.Repositories.GetCommitSHA1(ctx, owner, name, ref, "")
	c.logRateLimit(resp, "commit sha")
	if err != nil {
		return "", c.classify(fmt.Sprintf("resolve %s@%s", repo, ref), resp, err)
	}
	return sha, nil
}

// CreateDeployment submits a deployment. A 202 answer is returned as a
// CreatedDeployment with ID zero and the platform's message.
func (c *Client) CreateDeployment(ctx context.Context, repo string, spec DeploymentSpec) (*CreatedDeployment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	req := &github.DeploymentRequest{
		Ref:         github.String(spec.Ref),
		Environment: github.String(spec.Environment),
		AutoMerge:   github.Bool(spec.AutoMerge),
	}
	if spec.Task != "" {
		req.Task = github.String(spec.Task)
	}
	if spec.Description != "" {
		req.Description = github.String(spec.Description)
	}
	if spec.RequiredContexts != nil {
		contexts := spec.RequiredContexts
		req.RequiredContexts = &contexts
	}

	d, resp, err := c.gh.Repositories.CreateDeployment(ctx, owner, name, req)
	c.logRateLimit(resp, "create deployment")
	if err != nil {
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			return &CreatedDeployment{Ref: spec.Ref, Message: acceptedMessage(accepted)}, nil
		}
		return nil, c.classify("create deployment in "+repo, resp, err)
	}

	return &CreatedDeployment{
		ID:  d.GetID(),
		SHA: d.GetSHA(),
		Ref: d.GetRef(),
	}, nil
}

// LatestDeployment returns the newest deployment to env, or nil when the
// environment has never been deployed.
func (c *Client) LatestDeployment(ctx context.Context, repo, env string) (*DeploymentRecord, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &github.DeploymentsListOptions{
		Environment: env,
		ListOptions: github.ListOptions{PerPage: 1},
	}
	deployments, resp, err := c.gh.Repositories.ListDeployments(ctx, owner, name, opts)
	c.logRateLimit(resp, "list deployments")
	if err != nil {
		return nil, c.classify("list deployments of "+repo, resp, err)
	}
	if len(deployments) == 0 {
		return nil, nil
	}

	d := deployments[0]
	return &DeploymentRecord{
		ID:          d.GetID(),
		SHA:         d.GetSHA(),
		Ref:         d.GetRef(),
		Environment: d.GetEnvironment(),
		CreatedAt:   d.GetCreatedAt().Time,
	}, nil
}

// DeploymentStatuses lists the statuses of a deployment, newest first.
func (c *Client) DeploymentStatuses(ctx context.Context, repo string, id int64) ([]DeploymentState, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	statuses, resp, err := c.gh.Repositories.ListDeploymentStatuses(ctx, owner, name, id, &github.ListOptions{PerPage: 10})
	c.logRateLimit(resp, "deployment statuses")
	if err != nil {
		return nil, c.classify(fmt.Sprintf("statuses of deployment %d", id), resp, err)
	}

	out := make([]DeploymentState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DeploymentState{
			State:          s.GetState(),
			Description:    s.GetDescription(),
			LogURL:         s.GetLogURL(),
			EnvironmentURL: s.GetEnvironmentURL(),
			CreatedAt:      s.GetCreatedAt().Time,
		})
	}
	return out, nil
}

// LatestRelease returns the newest non-draft, non-prerelease release.
// A repository without releases yields a NotFoundError.
func (c *Client) LatestRelease(ctx context.Context, repo string) (*Release, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	rel, resp, err := c.gh.Repositories.GetLatestRelease(ctx, owner, name)
	c.logRateLimit(resp, "latest release")
	if err != nil {
		classified := c.classify("latest release of "+repo, resp, err)
		var apiErr *failure.APIError
		if errors.As(classified, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, &failure.NotFoundError{What: "latest release of " + repo}
		}
		return nil, classified
	}

	out := &Release{
		TagName: rel.GetTagName(),
		Name:    rel.GetName(),
		Body:    rel.GetBody(),
	}
	for _, a := range rel.Assets {
		out.Assets = append(out.Assets, Asset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
			Size:        int64(a.GetSize()),
		})
	}
	return out, nil
}

// DownloadAsset streams a release asset. The caller closes the reader.
// Both a body served by the API and one behind a redirect are bounded by
// the download timeout.
func (c *Client) DownloadAsset(ctx context.Context, repo string, id int64) (io.ReadCloser, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	rc, _, err := c.assets.Repositories.DownloadReleaseAsset(ctx, owner, name, id, c.downloads)
	if err != nil {
		return nil, c.classify(fmt.Sprintf("download asset %d", id), nil, err)
	}
	return rc, nil
}
