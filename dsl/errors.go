package dsl

import (
	"fmt"

	"github.com/kadraman/beatbax/internal/diag"
)

// ParseError is re-exported from internal/diag so callers can type-assert
// against dsl.ParseError without importing internal/diag themselves.
type ParseError = diag.ParseError

// Warning is re-exported from internal/diag for the same reason; the
// parser uses it for pattern-name diagnostics (spec.md §4.B).
type Warning = diag.ResolveWarning

func newParseError(loc Location, format string, args ...any) error {
	return &diag.ParseError{Message: fmt.Sprintf(format, args...), Loc: loc}
}
