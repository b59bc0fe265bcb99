package quant

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrShapeMismatch}, args...)...)
}

func invalidModelf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrInvalidModel}, args...)...)
}
