package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an update or delete matched no row.
	ErrNotFound = errors.New("task not found")
	// ErrNoRow means an insert succeeded without returning the created row.
	ErrNoRow = errors.New("no data returned")
)

type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load tasks: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type InsertError struct {
	Err error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("failed to add task: %v", e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

type UpdateError struct {
	ID  int64
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("failed to update task %d: %v", e.ID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

type DeleteError struct {
	ID  int64
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete task %d: %v", e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
