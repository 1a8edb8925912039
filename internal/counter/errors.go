package counter

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("counter record not found")
	ErrMissingAttribute = errors.New("counter attribute missing from response")
)

// StorageError reports a failed call to the storage engine, or a response
// that lacks the counter attribute.
type StorageError struct {
	Op  string
	Key string
	// Code is the engine's error code when it provides one.
	Code string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s key=%s: code=%s: %v", e.Op, e.Key, e.Code, e.Err)
	}
	return fmt.Sprintf("%s key=%s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SerializationError reports a stored value that cannot be represented as a
// JSON number.
type SerializationError struct {
	Value string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize value=%q: %v", e.Value, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
