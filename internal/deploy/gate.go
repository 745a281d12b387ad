package deploy

import (
	"context"

	"deploy/internal/platform"
)

// StatusResult is the aggregate commit status of a ref.
type StatusResult int

const (
	StatusNoStatus StatusResult = iota
	StatusSuccess
	StatusPending
	StatusFailure
	StatusError
)

func (s StatusResult) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending:
		return "pending"
	case StatusFailure:
		return "failure"
	case StatusError:
		return "error"
	default:
		return "no status"
	}
}

// Permits reports whether a deployment may proceed given result. Only a
// green or absent status lets a deployment through without override.
func Permits(result StatusResult, override bool) bool {
	return override || result == StatusSuccess || result == StatusNoStatus
}

// StatusClient reads combined commit status.
type StatusClient interface {
	CombinedStatus(ctx context.Context, repo, ref string) (*platform.CombinedStatus, error)
}

// StatusReport is a status result together with the contexts that are
// holding it back.
type StatusReport struct {
	Result StatusResult
	SHA    string
	// Blocking lists "context: state" for every context that is not green.
	Blocking []string
}

// StatusGate decides whether commit status allows a deployment.
type StatusGate struct {
	client StatusClient
}

// NewStatusGate returns a gate backed by client.
func NewStatusGate(client StatusClient) *StatusGate {
	return &StatusGate{client: client}
}

// Check returns the aggregate status of ref.
func (g *StatusGate) Check(ctx context.Context, repo, ref string) (StatusResult, error) {
	report, err := g.Inspect(ctx, repo, ref)
	if err != nil {
		return StatusNoStatus, err
	}
	return report.Result, nil
}

// Inspect returns the aggregate status of ref with its blocking contexts.
// Errors are returned as is; a failed query never reads as NoStatus.
func (g *StatusGate) Inspect(ctx context.Context, repo, ref string) (*StatusReport, error) {
	combined, err := g.client.CombinedStatus(ctx, repo, ref)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Result: mapCombinedStatus(combined), SHA: combined.SHA}
	for _, s := range combined.Statuses {
		if s.State != "success" {
			report.Blocking = append(report.Blocking, s.Context+": "+s.State)
		}
	}
	return report, nil
}

// mapCombinedStatus maps the platform's combined state. The platform
// reports "pending" for a commit nobody has reported on, so the count
// decides NoStatus. Unknown states block.
func mapCombinedStatus(c *platform.CombinedStatus) StatusResult {
	if c.TotalCount == 0 && len(c.Statuses) == 0 {
		return StatusNoStatus
	}
	switch c.State {
	case "success":
		return StatusSuccess
	case "pending":
		return StatusPending
	case "failure":
		return StatusFailure
	default:
		return StatusError
	}
}
