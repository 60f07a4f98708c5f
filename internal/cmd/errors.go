package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
)

// Process exit codes. Configuration problems share the invalid argument code.
const (
	ExitSuccess                    = 0
	ExitFailure                    = 1
	ExitInvalidArgument            = foundry.ExitInvalidArgument
	ExitConfigInvalid              = foundry.ExitInvalidArgument
	ExitExternalServiceUnavailable = foundry.ExitExternalServiceUnavailable
	ExitFileWriteError             = foundry.ExitFileWriteError
	ExitSignalInt                  = foundry.ExitSignalInt
)

// ExitErr carries the exit code of a failed command.
type ExitErr struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitErr) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitErr) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitErr{Code: code, Message: message, Err: err}
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitErr
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
