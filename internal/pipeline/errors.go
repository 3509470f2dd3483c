package pipeline

import (
	"errors"
	"fmt"
)

// Rejections raised before any row is evaluated.
var (
	ErrInputFormat      = errors.New("input has no parsable lines")
	ErrEmptyDataset     = errors.New("input has a header but no data rows")
	ErrRowLimitExceeded = errors.New("row limit exceeded")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// LimitError reports which limit was hit. It unwraps to ErrRowLimitExceeded
// or ErrPayloadTooLarge.
type LimitError struct {
	Err    error
	Limit  int64
	Actual int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: %d exceeds limit of %d", e.Err, e.Actual, e.Limit)
}

func (e *LimitError) Unwrap() error { return e.Err }

// IsRejection reports whether err is one of the input rejections above.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInputFormat) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrRowLimitExceeded) ||
		errors.Is(err, ErrPayloadTooLarge)
}
