package query

import (
	"errors"
	"fmt"
)

var (
	ErrNoQueryFound    = errors.New("no query found in model output")
	ErrNotDataQuestion = errors.New("question does not need the database")
	ErrRejected        = errors.New("query rejected")
	ErrTimeout         = errors.New("query timed out")
)

// ExecutionError wraps a driver error for a query that passed validation.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
