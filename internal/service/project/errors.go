package project

import (
	"errors"
	"fmt"

	"github.com/splax/composedeck/internal/repository"
)

var (
	ErrNameRequired  = errors.New("project name is required")
	ErrRepoRequired  = errors.New("repository name is required")
	ErrOwnerRequired = errors.New("owner identity is required")
	ErrInvalidName   = errors.New("project name must contain only lowercase letters, digits and inner hyphens")
	ErrNotFound      = errors.New("project not found")
)

// ErrorKind classifies store failures.
type ErrorKind int

const (
	// KindConflict covers create against an existing key and update against a missing one.
	KindConflict ErrorKind = iota + 1
	// KindNotFound covers reads and deletes of a missing key.
	KindNotFound
	// KindUnavailable covers every other store failure.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// StoreError reports a failed store call. Its message is the store's own.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Key  string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Kind)
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsKind reports whether err is a StoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Kind == kind
}

func classify(op, key string, err error, conflictOn error) error {
	kind := KindUnavailable
	switch {
	case conflictOn != nil && errors.Is(err, conflictOn):
		kind = KindConflict
	case errors.Is(err, repository.ErrNotFound):
		kind = KindNotFound
	}
	return &StoreError{Kind: kind, Op: op, Key: key, Err: err}
}
