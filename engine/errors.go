package engine

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrShapeMismatch}, args...)...)
}

func contextOverflowf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrContextOverflow}, args...)...)
}

func unsupportedArchf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrUnsupportedArchitecture}, args...)...)
}

func internalKernelf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrInternalKernel}, args...)...)
}
