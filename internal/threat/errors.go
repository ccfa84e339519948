package threat

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned by outlier detection when no samples are given.
var ErrEmptyInput = errors.New("empty input: at least one sample is required")

// EmptyInputError carries the operation that rejected an empty input.
// It matches ErrEmptyInput under errors.Is.
type EmptyInputError struct {
	Op string
}

func (e *EmptyInputError) Error() string {
	return e.Op + ": " + ErrEmptyInput.Error()
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// ErrNonFinite is returned by outlier detection when a sample or a derived
// statistic is NaN or infinite.
var ErrNonFinite = errors.New("non-finite value")

// NonFiniteError names the value that could not be represented. It matches
// ErrNonFinite under errors.Is.
type NonFiniteError struct {
	Op    string
	Value string
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrNonFinite.Error(), e.Value)
}

func (e *NonFiniteError) Is(target error) bool {
	return target == ErrNonFinite
}

// ExternalCallError is the failure of an external collaborator (reputation
// lookup, port probe). The engine passes it through to the caller unchanged
// and never retries; retry policy belongs to the calling layer.
type ExternalCallError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call failed (code %d): %s", e.Code, e.Message)
}
