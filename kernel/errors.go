package kernel

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrShapeMismatch}, args...)...)
}

func kernelErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrUnsupportedKernel}, args...)...)
}
