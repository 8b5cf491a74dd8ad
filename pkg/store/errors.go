package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModuleNotFound is matched by every ModuleNotFoundError.
var ErrModuleNotFound = errors.New("store module not found")

// ErrAlreadyRegistered is returned when a resource name is registered twice.
var ErrAlreadyRegistered = errors.New("store module already registered")

// ErrUnknownOperation is returned when an operation or named entry does not
// exist on a module, or has the wrong kind for the call.
var ErrUnknownOperation = errors.New("unknown store operation")

// ModuleNotFoundError is returned when an operation addresses a resource
// name that has not been registered.
type ModuleNotFoundError struct {
	Resource string
	Known    []string
}

func (e *ModuleNotFoundError) Error() string {
	known := "none"
	if len(e.Known) > 0 {
		known = strings.Join(e.Known, ", ")
	}
	return fmt.Sprintf("could not find store module %q, registered modules: %s", e.Resource, known)
}

// Is makes errors.Is(err, ErrModuleNotFound) hold.
func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ModuleNotFoundError) Hint() string {
	return fmt.Sprintf("Register %q before using it, e.g. by constructing its controller first.", e.Resource)
}

// ValidationError is returned when an item is rejected locally before any
// request is sent.
type ValidationError struct {
	Resource string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: validation failed for field %q: %s", e.Resource, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Resource, e.Message)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ValidationError) Hint() string {
	if e.Field != "" {
		return fmt.Sprintf("Check the value of field %q.", e.Field)
	}
	return "Check the item against the module schema."
}

// HintError is an error that provides a resolution hint.
type HintError interface {
	error
	Hint() string
}
