package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAt(t *testing.T) {
	if got := At(StageFetch, nil); got != nil {
		t.Fatalf("At(nil) = %v, want nil", got)
	}

	err := At(StageSubmission, &APIError{Status: 500, Body: "boom"})
	want := "submission failed: platform returned 500: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	// a second wrap keeps the innermost stage
	err = At(StageSwap, fmt.Errorf("outer: %w", err))
	stage, ok := StageOf(err)
	if !ok || stage != StageSubmission {
		t.Errorf("StageOf() = %q, %v, want %q", stage, ok, StageSubmission)
	}
}

func TestStageOfWithoutStage(t *testing.T) {
	if _, ok := StageOf(errors.New("plain")); ok {
		t.Error("StageOf() reported a stage for an unwrapped error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), ExitGeneric},
		{"configuration", Configuration("bad %s", "flag"), ExitConfiguration},
		{"api", &APIError{Status: 422}, ExitAPI},
		{"network", &NetworkError{Err: context.DeadlineExceeded}, ExitNetwork},
		{"integrity", &IntegrityError{Name: "a", Expected: "1", Got: "2"}, ExitIntegrity},
		{"unsupported", &UnsupportedPlatformError{Platform: "plan9_arm"}, ExitUnsupported},
		{"not found", &NotFoundError{What: "release"}, ExitNotFound},
		{"blocked", &BlockedError{Ref: "main", Result: "failure"}, ExitBlocked},
		{"staged api", At(StageFetch, &APIError{Status: 500}), ExitAPI},
		{"wrapped network", fmt.Errorf("ctx: %w", &NetworkError{Err: context.Canceled}), ExitNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntegrityErrorMatchesSentinel(t *testing.T) {
	err := At(StageVerification, &IntegrityError{Name: "deploy", Expected: "aa", Got: "bb"})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Error("errors.Is(err, ErrChecksumMismatch) = false, want true")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&APIError{Status: 404}, "platform returned 404: Not Found"},
		{&NetworkError{Op: "GET /repos", Err: errors.New("refused")}, "network error during GET /repos: refused"},
		{&NotFoundError{What: "latest release"}, "latest release not found"},
		{&UnsupportedPlatformError{Platform: "linux_arm64", Available: []string{"deploy_darwin_amd64.tar.gz"}},
			"no release asset for linux_arm64 (available: deploy_darwin_amd64.tar.gz)"},
		{&BlockedError{Ref: "main", Result: "failure", Contexts: []string{"ci/build: failure"}},
			"commit status for main is failure (ci/build: failure); use --force to deploy anyway"},
		{&ConfigurationError{Msg: "reading config", Err: errors.New("denied")}, "reading config: denied"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
