package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRegistered marks a registration that overwrote an existing entry.
	ErrAlreadyRegistered = errors.New("window already registered")
	// ErrNotRegistered marks an operation on a window with no registration.
	ErrNotRegistered = errors.New("window not registered")
)

// Warning is a soft error: the operation completed (or was a no-op) and the
// misuse was logged. Transports must answer the caller normally.
type Warning struct {
	Op       string
	WindowID uint32
	Err      error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s %d: %v", w.Op, w.WindowID, w.Err)
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// IsWarning reports whether err is a soft *Warning.
func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}
