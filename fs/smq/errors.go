package smq

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func invalidModelf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrInvalidModel}, args...)...)
}

func integrityf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrIntegrity}, args...)...)
}
