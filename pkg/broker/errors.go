package broker

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a brokering phase failed
type Kind string

const (
	KindBrokerFailed           Kind = "broker_failed"
	KindValidation             Kind = "validation"
	KindInfrastructure         Kind = "infrastructure"
	KindInternalInfrastructure Kind = "internal_infrastructure"
	KindTimeout                Kind = "timeout"
	KindCancelled              Kind = "cancelled"
)

// Sentinels for errors.Is matching by kind
var (
	ErrBrokerFailed           = &Error{Kind: KindBrokerFailed}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrInfrastructure         = &Error{Kind: KindInfrastructure}
	ErrInternalInfrastructure = &Error{Kind: KindInternalInfrastructure}
	ErrTimeout                = &Error{Kind: KindTimeout}
	ErrCancelled              = &Error{Kind: KindCancelled}
)

// Error is the failure of a brokering phase for one workspace
type Error struct {
	Kind        Kind
	WorkspaceID string
	Message     string
	Err         error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels that carry only a kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.WorkspaceID != "" {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of a brokering error, or "" for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func brokerFailedError(workspaceID, brokerErr string) *Error {
	return &Error{
		Kind:        KindBrokerFailed,
		WorkspaceID: workspaceID,
		Message:     fmt.Sprintf("Plugin broker failed for workspace %s: %s", workspaceID, brokerErr),
	}
}

func validationError(workspaceID string, err error) *Error {
	return &Error{
		Kind:        KindValidation,
		WorkspaceID: workspaceID,
		Message:     fmt.Sprintf("Plugins validation failed for workspace %s: %v", workspaceID, err),
		Err:         err,
	}
}

func missingToolingError(workspaceID string) *Error {
	return &Error{
		Kind:        KindInternalInfrastructure,
		WorkspaceID: workspaceID,
		Message:     fmt.Sprintf("Plugins tooling is missing for workspace %s", workspaceID),
	}
}

func internalError(workspaceID string, cause any) *Error {
	return &Error{
		Kind:        KindInternalInfrastructure,
		WorkspaceID: workspaceID,
		Message:     fmt.Sprintf("Internal error while processing plugin broker result for workspace %s: %v", workspaceID, cause),
	}
}

func infrastructureError(workspaceID, msg string, err error) *Error {
	return &Error{
		Kind:        KindInfrastructure,
		WorkspaceID: workspaceID,
		Message:     fmt.Sprintf("%s for workspace %s: %v", msg, workspaceID, err),
		Err:         err,
	}
}

// contextError classifies a context expiry as a timeout or a cancellation
func contextError(workspaceID, phase string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:        KindTimeout,
			WorkspaceID: workspaceID,
			Message:     fmt.Sprintf("Plugin brokering for workspace %s timed out while %s", workspaceID, phase),
			Err:         err,
		}
	}
	return &Error{
		Kind:        KindCancelled,
		WorkspaceID: workspaceID,
		Message:     fmt.Sprintf("Plugin brokering for workspace %s was cancelled while %s", workspaceID, phase),
		Err:         err,
	}
}
