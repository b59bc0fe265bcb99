package registry

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrValidation}, args...)...)
}
