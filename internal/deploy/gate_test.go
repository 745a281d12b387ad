package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deploy/internal/failure"
	"deploy/internal/platform"
)

type fakeStatus struct {
	combined *platform.CombinedStatus
	err      error
}

func (f fakeStatus) CombinedStatus(context.Context, string, string) (*platform.CombinedStatus, error) {
	return f.combined, f.err
}

func TestPermits(t *testing.T) {
	tests := []struct {
		result   StatusResult
		override bool
		want     bool
	}{
		{StatusSuccess, false, true},
		{StatusNoStatus, false, true},
		{StatusPending, false, false},
		{StatusFailure, false, false},
		{StatusError, false, false},
		{StatusPending, true, true},
		{StatusFailure, true, true},
		{StatusError, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Permits(tt.result, tt.override))
		})
	}
}

func TestStatusGateCheck(t *testing.T) {
	statuses := []platform.CommitStatus{{Context: "ci", State: "success"}}

	tests := []struct {
		name     string
		combined *platform.CombinedStatus
		want     StatusResult
	}{
		{"success", &platform.CombinedStatus{State: "success", TotalCount: 1, Statuses: statuses}, StatusSuccess},
		{"pending", &platform.CombinedStatus{State: "pending", TotalCount: 1, Statuses: statuses}, StatusPending},
		{"failure", &platform.CombinedStatus{State: "failure", TotalCount: 1, Statuses: statuses}, StatusFailure},
		{"error", &platform.CombinedStatus{State: "error", TotalCount: 1, Statuses: statuses}, StatusError},
		{"unknown state blocks", &platform.CombinedStatus{State: "exploded", TotalCount: 1, Statuses: statuses}, StatusError},
		{"nothing reported", &platform.CombinedStatus{State: "pending"}, StatusNoStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewStatusGate(fakeStatus{combined: tt.combined})

			got, err := gate.Check(context.Background(), "keelerm84/deploy", "main")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusGateQueryFailureIsNotNoStatus(t *testing.T) {
	apiErr := &failure.APIError{Status: 500, Body: "boom"}
	gate := NewStatusGate(fakeStatus{err: apiErr})

	_, err := gate.Check(context.Background(), "keelerm84/deploy", "main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apiErr))

	report, err := gate.Inspect(context.Background(), "keelerm84/deploy", "main")
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestStatusGateInspectListsBlockingContexts(t *testing.T) {
	gate := NewStatusGate(fakeStatus{combined: &platform.CombinedStatus{
		State:      "failure",
		SHA:        "abc123",
		TotalCount: 3,
		Statuses: []platform.CommitStatus{
			{Context: "ci/build", State: "success"},
			{Context: "ci/test", State: "failure"},
			{Context: "ci/lint", State: "pending"},
		},
	}})

	report, err := gate.Inspect(context.Background(), "keelerm84/deploy", "main")
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, report.Result)
	assert.Equal(t, "abc123", report.SHA)
	assert.Equal(t, []string{"ci/test: failure", "ci/lint: pending"}, report.Blocking)
}
