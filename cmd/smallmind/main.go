// Command smallmind is the reference CLI front end over the
// inference core: generate, import-gguf, verify, and inspect.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/smallmind-run/smallmind/smerr"
)

func main() {
	os.Exit(run())
}

// run builds the root command, executes it, and maps the result to
// spec.md §6's exit-code convention: 0 success, 1 user error, 2
// coherence/validation failure.
func run() int {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, err)

	switch {
	case errors.Is(err, smerr.ErrValidation),
		errors.Is(err, smerr.ErrInvalidModel),
		errors.Is(err, smerr.ErrIntegrity),
		errors.Is(err, smerr.ErrUnsupportedArchitecture),
		errors.Is(err, smerr.ErrUnsupportedConversion),
		errors.Is(err, smerr.ErrShapeMismatch):
		return 2
	default:
		return 1
	}
}
