package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a non-owner attempts an owner-only command
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a referenced alert or subscription does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized is returned when the config singleton was never written
	ErrNotInitialized = errors.New("registry not initialized")

	// ErrAlreadyInitialized is returned by a second Init
	ErrAlreadyInitialized = errors.New("registry already initialized")
)

// ValidationError reports a field-completeness failure on subscribe
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}

// StorageError wraps a failure of the underlying store, including records
// that no longer decode
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
