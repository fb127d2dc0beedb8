package attribution

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/collabedit/internal/engine/position"
)

// ErrInvariantViolation is matched by *InvariantError.
var ErrInvariantViolation = errors.New("attribution invariant violated")

// InvariantError reports a range of the inserting user's color that
// overlaps an insertion in a way no merge can resolve. The range set can no
// longer be trusted afterwards.
type InvariantError struct {
	Existing position.Span
	Inserted position.Span
	Color    colorful.Color
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: range %s of color %s overlaps insertion %s",
		ErrInvariantViolation, e.Existing, e.Color.Hex(), e.Inserted)
}

// Is reports whether target is ErrInvariantViolation.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}
