// Package failure defines the error classes shared by the deploy and
// self-update paths, the stage an error occurred in, and the process exit
// code each class maps to.
package failure

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Stage names the step of a run in which an error occurred.
type Stage string

const (
	StageResolution   Stage = "resolution"
	StageStatusCheck  Stage = "status check"
	StageSubmission   Stage = "submission"
	StageWatch        Stage = "watch"
	StageFetch        Stage = "fetch"
	StageSelect       Stage = "select"
	StageDownload     Stage = "download"
	StageVerification Stage = "verification"
	StageExtract      Stage = "extract"
	StageSwap         Stage = "swap"
)

// Exit codes returned by ExitCode.
const (
	ExitGeneric       = 1
	ExitConfiguration = 2
	ExitAPI           = 3
	ExitNetwork       = 4
	ExitIntegrity     = 5
	ExitUnsupported   = 6
	ExitNotFound      = 7
	ExitBlocked       = 8
)

// ErrChecksumMismatch is matched by every IntegrityError.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// StageError attributes an error to the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// At wraps err with stage. A nil error stays nil, and an error already
// carrying a stage keeps its original one.
func At(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ConfigurationError reports invalid input or an unusable local setup:
// bad flags, missing credentials, a checkout the repository or ref cannot
// be derived from.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configuration builds a ConfigurationError from a format string.
func Configuration(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// APIError is a non-success HTTP response from the platform.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.Status)
	}
	return fmt.Sprintf("platform returned %d: %s", e.Status, body)
}

// NetworkError is a transport failure: DNS, connect, TLS, timeout or a
// cancelled context.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IntegrityError reports a downloaded file whose digest does not match the
// published checksum.
type IntegrityError struct {
	Name     string
	Expected string
	Got      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Name, e.Expected, e.Got)
}

func (e *IntegrityError) Unwrap() error { return ErrChecksumMismatch }

// UnsupportedPlatformError means a release carries no asset for this
// OS/architecture.
type UnsupportedPlatformError struct {
	Platform  string
	Available []string
}

func (e *UnsupportedPlatformError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no release asset for %s (release has no assets)", e.Platform)
	}
	return fmt.Sprintf("no release asset for %s (available: %s)", e.Platform, strings.Join(e.Available, ", "))
}

// NotFoundError is returned when a looked-up resource does not exist.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// BlockedError is returned when commit status forbids a deployment and no
// override was given.
type BlockedError struct {
	Ref      string
	Result   string
	Contexts []string
}

func (e *BlockedError) Error() string {
	msg := fmt.Sprintf("commit status for %s is %s", e.Ref, e.Result)
	if len(e.Contexts) > 0 {
		msg += " (" + strings.Join(e.Contexts, ", ") + ")"
	}
	return msg + "; use --force to deploy anyway"
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var (
		configErr      *ConfigurationError
		apiErr         *APIError
		netErr         *NetworkError
		integrityErr   *IntegrityError
		unsupportedErr *UnsupportedPlatformError
		notFoundErr    *NotFoundError
		blockedErr     *BlockedError
	)

	switch {
	case errors.As(err, &configErr):
		return ExitConfiguration
	case errors.As(err, &integrityErr):
		return ExitIntegrity
	case errors.As(err, &unsupportedErr):
		return ExitUnsupported
	case errors.As(err, &notFoundErr):
		return ExitNotFound
	case errors.As(err, &blockedErr):
		return ExitBlocked
	case errors.As(err, &apiErr):
		return ExitAPI
	case errors.As(err, &netErr):
		return ExitNetwork
	default:
		return ExitGeneric
	}
}
