package access

import (
	"errors"
	"fmt"
)

// ErrInvariant marks inputs that can only come from a programming or data
// corruption error. Callers must not turn these into denials.
var ErrInvariant = errors.New("access invariant violated")

var (
	ErrInvalidModality = fmt.Errorf("%w: invalid modality", ErrInvariant)
	ErrInvalidSnapshot = fmt.Errorf("%w: invalid snapshot", ErrInvariant)
)
