package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"deploy/internal/platform"
)

// Deployment status states reported by the platform.
const (
	StateSuccess    = "success"
	StateFailure    = "failure"
	StateError      = "error"
	StateInactive   = "inactive"
	StatePending    = "pending"
	StateQueued     = "queued"
	StateInProgress = "in_progress"
)

// ErrWatchTimeout is returned when a deployment does not finish in time.
var ErrWatchTimeout = errors.New("deployment did not finish in time")

// StatusLister lists the statuses of a deployment, newest first.
type StatusLister interface {
	DeploymentStatuses(ctx context.Context, repo string, id int64) ([]platform.DeploymentState, error)
}

// FailedError is returned when a deployment ends in failure or error.
type FailedError struct {
	State       string
	Description string
	LogURL      string
}

func (e *FailedError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = "no description given"
	}
	msg := fmt.Sprintf("deployment finished with %s: %s", e.State, desc)
	if e.LogURL != "" {
		msg += " (" + e.LogURL + ")"
	}
	return msg
}

// Watcher polls a deployment until it reaches a terminal state.
type Watcher struct {
	client   StatusLister
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger
	onChange func(state platform.DeploymentState)
}

// NewWatcher polls at most once per interval and gives up after timeout.
func NewWatcher(client StatusLister, interval, timeout time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		timeout: timeout,
		logger:  logger,
	}
}

// OnChange registers fn to be called whenever the latest state changes.
func (w *Watcher) OnChange(fn func(state platform.DeploymentState)) {
	w.onChange = fn
}

// Wait blocks until deployment id succeeds, fails, or the timeout passes.
// Any poll error ends the wait.
func (w *Watcher) Wait(ctx context.Context, repo string, id int64) (*platform.DeploymentState, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	last := ""
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, w.waitErr(ctx, err)
		}

		states, err := w.client.DeploymentStatuses(ctx, repo, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, w.waitErr(ctx, err)
			}
			return nil, err
		}
		if len(states) == 0 {
			continue
		}

		latest := states[0]
		if latest.State != last {
			last = latest.State
			w.logger.Debug("deployment state", "id", id, "state", latest.State)
			if w.onChange != nil {
				w.onChange(latest)
			}
		}

		switch latest.State {
		case StateSuccess:
			return &latest, nil
		case StateFailure, StateError, StateInactive:
			return &latest, &FailedError{State: latest.State, Description: latest.Description, LogURL: latest.LogURL}
		}
	}
}

// waitErr reports a timeout unless the caller cancelled. The limiter fails
// early, before the context expires, when the next poll would land past
// the deadline.
func (w *Watcher) waitErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return err
	}
	return fmt.Errorf("%w after %s", ErrWatchTimeout, w.timeout)
}
