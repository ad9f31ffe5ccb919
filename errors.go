package chemgo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidShardSize is returned when a shard size is not positive.
	ErrInvalidShardSize = errors.New("shard size must be positive")

	// ErrInvalidBatchSize is returned when a batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrIndexOutOfRange is returned when a selection index is outside the
	// dataset.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrTaskCountMismatch is returned when the number of destination
	// directories does not match the number of tasks.
	ErrTaskCountMismatch = errors.New("directory count does not match task count")
)

// ErrShapeMismatch indicates that the four dataset arrays disagree on shape.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrShapeMismatch struct {
	Array    string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch: %s has %d rows, expected %d", e.Array, e.Actual, e.Expected)
}

func (e *ErrShapeMismatch) Unwrap() error { return e.cause }
