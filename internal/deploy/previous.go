package deploy

import (
	"context"
	"fmt"
	"strings"

	"deploy/internal/platform"
)

// HistoryClient finds earlier deployments.
type HistoryClient interface {
	LatestDeployment(ctx context.Context, repo, env string) (*platform.DeploymentRecord, error)
}

// Previous returns the newest deployment to env, or nil if there is none.
func Previous(ctx context.Context, client HistoryClient, repo, env string) (*platform.DeploymentRecord, error) {
	return client.LatestDeployment(ctx, repo, env)
}

// CompareURL links the changes between two refs in the web UI.
func CompareURL(webURL, repo, base, head string) string {
	return fmt.Sprintf("%s/%s/compare/%s...%s", strings.TrimSuffix(webURL, "/"), repo, base, head)
}
