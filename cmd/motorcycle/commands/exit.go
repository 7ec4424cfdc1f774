package commands

import (
	"context"
	"errors"
	"fmt"
)

const (
	exitFailure       = 1
	exitInvalidConfig = 2
)

var errInterrupted = errors.New("interrupted")

// exitError carries the process exit code up to Execute.
type exitError struct {
	code    int
	message string
	err     error
}

func (e *exitError) Error() string {
	return fmt.Sprintf("%s: %s", e.message, e.err)
}

func (e *exitError) Unwrap() error {
	return e.err
}

// fail wraps err with an exit code, a canceled ctx turns any failure into
// an interrupt.
func fail(ctx context.Context, code int, message string, err error) error {
	if ctx.Err() != nil {
		return errInterrupted
	}
	return &exitError{code: code, message: message, err: err}
}

// ExitCode maps an error returned by the commands to the process exit code.
// Errors cobra raises itself, such as unknown flags, are configuration
// errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errInterrupted) {
		return exitFailure
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitInvalidConfig
}
