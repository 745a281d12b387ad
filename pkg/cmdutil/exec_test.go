package cmdutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    ExecOptions
		cmd     []string
		wantErr bool
	}{
		{
			"successful command",
			ExecOptions{},
			[]string{"echo", "hello"},
			false,
		},
		{
			"command with args",
			ExecOptions{},
			[]string{"echo", "hello", "world"},
			false,
		},
		{
			"command that fails",
			ExecOptions{},
			[]string{"ls", "/nonexistent/directory/path"},
			true,
		},
		{
			"empty command",
			ExecOptions{},
			[]string{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(ctx, tt.opts, tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if result == nil {
					t.Fatal("Run() returned nil result for successful command")
				}
				if result.Duration == 0 {
					t.Error("Run() did not record execution duration")
				}
			}
		})
	}
}

func TestRunExitError(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{}, []string{"sh", "-c", "echo oops >&2; exit 3"})
	if err == nil {
		t.Fatal("Run() should return error for failed command")
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %T, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("ExitError.ExitCode = %d, want 3", exitErr.ExitCode)
	}
	if exitErr.Stderr != "oops" {
		t.Errorf("ExitError.Stderr = %q, want %q", exitErr.Stderr, "oops")
	}
	if result.ExitCode != 3 {
		t.Errorf("Result.ExitCode = %d, want 3", result.ExitCode)
	}
}

func TestRunTimeout(t *testing.T) {
	_, err := Run(context.Background(), ExecOptions{Timeout: 100 * time.Millisecond}, []string{"sleep", "5"})
	if err == nil {
		t.Fatal("Run() should time out for long command")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), ExecOptions{}, []string{"definitely-not-a-real-binary-xyz"})
	if err == nil {
		t.Fatal("Run() should fail for a missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Error("Run() returned *ExitError for a command that never started")
	}
}

func TestOutput(t *testing.T) {
	tmpDir := t.TempDir()

	got, err := Output(context.Background(), tmpDir, 5*time.Second, []string{"echo", "  padded  "})
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if got != "padded" {
		t.Errorf("Output() = %q, want %q", got, "padded")
	}
}

func TestExecOptions(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	t.Run("with working directory", func(t *testing.T) {
		result, err := Run(ctx, ExecOptions{Dir: tmpDir}, []string{"pwd"})
		if err != nil {
			t.Fatalf("Run() with Dir option error = %v", err)
		}
		if strings.TrimSpace(string(result.Stdout)) == "" {
			t.Error("Run() produced no output for pwd")
		}
	})

	t.Run("with environment variables", func(t *testing.T) {
		result, err := Run(ctx, ExecOptions{Env: []string{"TEST_VAR=test_value"}}, []string{"env"})
		if err != nil {
			t.Fatalf("Run() with Env option error = %v", err)
		}
		if !strings.Contains(string(result.Stdout), "TEST_VAR=test_value") {
			t.Error("Run() did not set environment variable correctly")
		}
	})
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  string
	}{
		{"simple command", []string{"git", "status"}, "git status"},
		{"argument with spaces", []string{"git", "commit", "-m", "my message"}, "git commit -m 'my message'"},
		{"empty command", []string{}, "<empty command>"},
		{"single command", []string{"ls"}, "ls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCommand(tt.input); got != tt.want {
				t.Errorf("FormatCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}
