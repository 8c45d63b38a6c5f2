// Package errs defines the typed error kinds from spec.md §7, following the
// same shape as the teacher's paasOperationFailure (code/stage/remediation
// wrapping an underlying error), generalized from a single string failure
// code to the fixed Kind enum the orchestration pipeline needs to decide
// retry vs. abort.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	InvalidInput       Kind = "InvalidInput"
	MissingRequired    Kind = "MissingRequired"
	MissingDependency  Kind = "MissingDependency"
	Insufficient       Kind = "Insufficient"
	SupplyChainViolation Kind = "SupplyChainViolation"
	DetectionFailed    Kind = "DetectionFailed"
	RuntimeUnreachable Kind = "RuntimeUnreachable"
	SynthesisFailed    Kind = "SynthesisFailed"
	TransientOperation Kind = "TransientOperation"
	PermanentOperation Kind = "PermanentOperation"
	DeadlineExceeded   Kind = "DeadlineExceeded"
	Cancelled          Kind = "Cancelled"
	NotInitialized     Kind = "NotInitialized"
)

// Error carries a kind, a human message, an optional remediation hint, and
// the step/command context it failed in, per spec.md §7's propagation rule.
type Error struct {
	Kind        Kind
	Step        string
	Command     string
	Remediation string
	Err         error
}

func New(kind Kind, step, message string) *Error {
	return &Error{Kind: kind, Step: step, Err: errors.New(message)}
}

func Wrap(kind Kind, step string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Step: step, Err: err}
}

func (e *Error) WithRemediation(hint string) *Error {
	if e == nil {
		return nil
	}
	e.Remediation = hint
	return e
}

func (e *Error) WithCommand(cmd string) *Error {
	if e == nil {
		return nil
	}
	e.Command = cmd
	return e
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Step, e.Err.Error())
	if e.Remediation != "" {
		msg += " (remediation: " + e.Remediation + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// As extracts the typed *Error from err, if present.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err, or PermanentOperation when err
// does not wrap a typed *Error (an un-annotated error is never assumed
// retryable).
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return PermanentOperation
}

// Retryable reports whether the retry combinator should absorb this error,
// per spec.md §7's distinction between Transient and Permanent kinds.
func Retryable(err error) bool {
	return KindOf(err) == TransientOperation
}
