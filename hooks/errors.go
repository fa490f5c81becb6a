package hooks

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is the panic value of AddFilter once the registry no longer accepts registrations.
	ErrFrozen = errors.New("hooks: registry is frozen")
	// ErrTypeMismatch is returned when a value in a typed chain does not have the hook's type.
	ErrTypeMismatch = errors.New("hooks: type mismatch")
)

// TransformerError reports the transformer that aborted a chain.
type TransformerError struct {
	Hook  string
	Index int
	Err   error
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("hooks: %s[%d]: %v", e.Hook, e.Index, e.Err)
}

func (e *TransformerError) Unwrap() error {
	return e.Err
}
