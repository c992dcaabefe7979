package dispatcher

import (
	"errors"
	"fmt"
)

// Dispatcher errors.
var (
	// ErrUnknownCommand indicates no command is registered under the name.
	ErrUnknownCommand = errors.New("dispatcher: unknown command")

	// ErrArity indicates the wrong number of arguments.
	ErrArity = errors.New("dispatcher: wrong number of arguments")

	// ErrArgument indicates an argument could not be decoded.
	ErrArgument = errors.New("dispatcher: invalid argument")

	// ErrPanic indicates the handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")
)

// CommandError wraps any failure of a dispatched command.
type CommandError struct {
	Command string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
