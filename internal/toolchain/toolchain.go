// Package toolchain locates the runtime used to launch the compiler host.
//
// The active runtime is an injected capability rather than process wide
// state: callers hold a Resolver and ask it for the runtime directory when
// they need to start a tool.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoRuntime indicates that no runtime directory could be determined.
var ErrNoRuntime = errors.New("toolchain: no active runtime")

// Resolver returns the directory of the active runtime.
type Resolver interface {
	Resolve() (string, error)
}

// Static always resolves to the same directory.
type Static string

// Resolve returns the directory.
func (s Static) Resolve() (string, error) {
	if s == "" {
		return "", ErrNoRuntime
	}
	return string(s), nil
}

// EnvResolver reads the runtime directory from an environment variable and
// falls back to a fixed directory.
type EnvResolver struct {
	// Var is the environment variable holding the runtime directory.
	Var string

	// Fallback is used when Var is unset or empty.
	Fallback string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve returns the runtime directory.
func (r EnvResolver) Resolve() (string, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if r.Var != "" {
		if dir := getenv(r.Var); dir != "" {
			return dir, nil
		}
	}
	if r.Fallback != "" {
		return r.Fallback, nil
	}
	return "", fmt.Errorf("%w: %s is not set", ErrNoRuntime, r.Var)
}

// LookPath locates command. Absolute paths are returned unchanged. A
// relative command is looked up in the runtime directory first, then in
// the runtime's bin directory, then on PATH. A nil resolver only consults
// PATH.
func LookPath(r Resolver, command string) (string, error) {
	if filepath.IsAbs(command) {
		return command, nil
	}
	if r != nil {
		if dir, err := r.Resolve(); err == nil {
			for _, candidate := range []string{
				filepath.Join(dir, command),
				filepath.Join(dir, "bin", command),
			} {
				if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
					return candidate, nil
				}
			}
		}
	}
	return exec.LookPath(command)
}
