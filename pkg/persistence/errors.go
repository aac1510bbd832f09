// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates no workflow exists for the id within
	// the caller's scope.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDeploymentNotFound indicates no deployment record exists for the
	// given id.
	ErrDeploymentNotFound = errors.New("deployment not found")
)

// StoreError wraps storage failures with operation context.
type StoreError struct {
	Op  string // Operation being performed (e.g. "Save", "GetByID")
	Key string // Entity id if applicable
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Key, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}

// IsWorkflowNotFound checks whether an error means the workflow does not
// exist for the caller.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsDeploymentNotFound checks whether an error means the deployment record
// does not exist.
func IsDeploymentNotFound(err error) bool {
	return errors.Is(err, ErrDeploymentNotFound)
}
