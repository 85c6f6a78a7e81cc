package emergency

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/railops/fleetcrisis/dataobjects"
)

// ErrorKind classifies the failures of the emergency operations
type ErrorKind int

const (
	// KindNotFound is an unknown train, plan, log or crisis
	KindNotFound ErrorKind = iota
	// KindInvalidState is a transition the current state does not allow
	KindInvalidState
	// KindValidation is malformed input, rejected before any state mutation
	KindValidation
	// KindDependencyFailure is a failure of the store, which aborted the operation
	KindDependencyFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidState:
		return "invalid state"
	case KindValidation:
		return "validation error"
	case KindDependencyFailure:
		return "dependency failure"
	}
	return "unknown error"
}

// Error is the error type returned by the operations of this package.
// It carries the entity and rule involved so that callers can decide whether to retry,
// escalate or alert a human
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed, e.g. "HandleBreakdown"
	Op string
	// Entity and ID identify the object involved, when there is one
	Entity string
	ID     string
	// Rule describes the violated constraint for InvalidState and Validation errors
	Rule string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Entity, e.ID)
	}
	if e.Rule != "" {
		b.WriteString(": ")
		b.WriteString(e.Rule)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Cause implements the causer interface of github.com/pkg/errors
func (e *Error) Cause() error { return e.Err }

// Unwrap allows errors.Is and errors.As from the standard library to see the underlying error
func (e *Error) Unwrap() error { return e.Err }

// Temporary returns whether the same call may succeed if repeated later.
// Only dependency failures the store classified as transient are temporary
func (e *Error) Temporary() bool {
	return e.Kind == KindDependencyFailure && dataobjects.IsTemporary(e.Err)
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsNotFound returns whether err is a NotFound error
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// IsInvalidState returns whether err is an InvalidState error
func IsInvalidState(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInvalidState
}

// IsValidation returns whether err is a Validation error
func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

// IsDependencyFailure returns whether err is a DependencyFailure error
func IsDependencyFailure(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindDependencyFailure
}

func notFoundError(op, entity, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id}
}

func invalidStateError(op, entity, id, rule string) error {
	return &Error{Kind: KindInvalidState, Op: op, Entity: entity, ID: id, Rule: rule}
}

func validationError(op, rule string) error {
	return &Error{Kind: KindValidation, Op: op, Rule: rule}
}

// storeError classifies an error returned by the store.
// Missing objects become NotFound errors, everything else is a dependency failure
func storeError(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := kindOf(err); ok {
		return err
	}
	if dataobjects.IsNotFound(err) {
		return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id, Err: err}
	}
	return &Error{Kind: KindDependencyFailure, Op: op, Entity: entity, ID: id, Err: errors.WithStack(err)}
}
