package constraint

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func invalidPatternf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrInvalidPattern}, args...)...)
}
