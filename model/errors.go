package model

import (
	"fmt"

	"github.com/smallmind-run/smallmind/smerr"
)

func invalidModelf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrInvalidModel}, args...)...)
}

func unsupportedArchf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrUnsupportedArchitecture}, args...)...)
}

func unsupportedConversionf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{smerr.ErrUnsupportedConversion}, args...)...)
}
