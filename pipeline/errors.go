package pipeline

import (
	"errors"
	"fmt"
)

// FatalError means retrying cannot help. The deposit must be fixed
// and resumed by an operator.
type FatalError struct {
	Reason string
	Detail string
}

func NewFatalError(reason, detailFormat string, a ...interface{}) *FatalError {
	return &FatalError{
		Reason: reason,
		Detail: fmt.Sprintf(detailFormat, a...),
	}
}

func (err *FatalError) Error() string {
	if err.Detail == "" {
		return err.Reason
	}
	return fmt.Sprintf("%s: %s", err.Reason, err.Detail)
}

// IsFatal returns true if err is, or wraps, a *FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// AsFatal returns the *FatalError inside err, or nil.
func AsFatal(err error) *FatalError {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal
	}
	return nil
}
