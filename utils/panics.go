package utils

import "fmt"

// RecoverWithError must be deferred directly. It turns a panic of the
// deferring function into *err, keeping panicked errors unwrappable.
func RecoverWithError(err *error) {
	rv := recover()
	if rv == nil {
		return
	}
	if rvErr, ok := rv.(error); ok {
		*err = fmt.Errorf("recovered from panic: %w", rvErr)
		return
	}
	*err = fmt.Errorf("recovered from panic: %v", rv)
}
