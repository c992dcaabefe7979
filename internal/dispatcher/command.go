package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is a client command: a name and positional JSON arguments.
type Request struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

// HandlerFunc executes a command with arguments whose count was checked.
type HandlerFunc func(ctx context.Context, args []json.RawMessage) error

// Command is a registered command.
type Command struct {
	Name string

	// MinArgs and MaxArgs bound the accepted argument count.
	MinArgs int
	MaxArgs int

	Handle HandlerFunc
}

// Func0 creates a command without arguments.
func Func0(name string, fn func(ctx context.Context) error) Command {
	return Command{
		Name: name,
		Handle: func(ctx context.Context, _ []json.RawMessage) error {
			return fn(ctx)
		},
	}
}

// Func1 creates a command with one required argument.
func Func1[A any](name string, fn func(ctx context.Context, a A) error) Command {
	return Command{
		Name:    name,
		MinArgs: 1,
		MaxArgs: 1,
		Handle: func(ctx context.Context, args []json.RawMessage) error {
			a, err := decodeArg[A](args, 0)
			if err != nil {
				return err
			}
			return fn(ctx, a)
		},
	}
}

// Func1Opt creates a command with one optional argument. fn receives nil
// when the argument is absent or JSON null.
func Func1Opt[A any](name string, fn func(ctx context.Context, a *A) error) Command {
	return Command{
		Name:    name,
		MinArgs: 0,
		MaxArgs: 1,
		Handle: func(ctx context.Context, args []json.RawMessage) error {
			if len(args) == 0 || string(args[0]) == "null" {
				return fn(ctx, nil)
			}
			a, err := decodeArg[A](args, 0)
			if err != nil {
				return err
			}
			return fn(ctx, &a)
		},
	}
}

// Func2 creates a command with two required arguments.
func Func2[A, B any](name string, fn func(ctx context.Context, a A, b B) error) Command {
	return Command{
		Name:    name,
		MinArgs: 2,
		MaxArgs: 2,
		Handle: func(ctx context.Context, args []json.RawMessage) error {
			a, err := decodeArg[A](args, 0)
			if err != nil {
				return err
			}
			b, err := decodeArg[B](args, 1)
			if err != nil {
				return err
			}
			return fn(ctx, a, b)
		},
	}
}

func decodeArg[T any](args []json.RawMessage, i int) (T, error) {
	var v T
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, fmt.Errorf("%w %d: %v", ErrArgument, i, err)
	}
	return v, nil
}
