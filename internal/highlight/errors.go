package highlight

import "errors"

var (
	// ErrNoCompiler indicates a pipeline built without a compiler.
	ErrNoCompiler = errors.New("highlight: no compiler")

	// ErrImportCycle indicates packages that import each other.
	ErrImportCycle = errors.New("highlight: import cycle")

	// ErrPackageNotFound indicates an import no source or reference provides.
	ErrPackageNotFound = errors.New("highlight: package not found")
)
