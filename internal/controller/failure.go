package controller

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a controller operation failed.
type FailureKind int

const (
	FailureGeneral FailureKind = iota
	// FailureProfileConfiguration means there is no current profile or account to act on.
	FailureProfileConfiguration
	FailureNetwork
	// FailureCredentialsIncorrect is an HTTP 401 from the provider.
	FailureCredentialsIncorrect
	// FailureServer is any other non-2xx response.
	FailureServer
	FailureParse
	// FailureLocalPrecondition means the operation was refused before any network call.
	FailureLocalPrecondition
)

var failureKindNames = map[FailureKind]string{
	FailureGeneral:              "general",
	FailureProfileConfiguration: "profile_configuration",
	FailureNetwork:              "network",
	FailureCredentialsIncorrect: "credentials_incorrect",
	FailureServer:               "server",
	FailureParse:                "parse",
	FailureLocalPrecondition:    "local_precondition",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Failure is the classified error returned by every controller operation.
type Failure struct {
	Kind    FailureKind
	Message string
	// Status is the HTTP status for server and credential failures.
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether repeating the operation later may succeed without the
// patron changing anything.
func (f *Failure) Retryable() bool {
	return f.Kind == FailureNetwork || f.Kind == FailureServer
}

// KindOf returns the failure kind of err, or FailureGeneral if err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureGeneral
}

// IsRetryable reports whether err is a retryable *Failure.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable()
}

func failure(kind FailureKind, err error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func statusFailure(kind FailureKind, status int, format string, args ...any) *Failure {
	f := failure(kind, nil, format, args...)
	f.Status = status
	return f
}
