package dispatch

import (
	"errors"
	"fmt"
)

// Error wraps a device link failure. Nothing was logged.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch: delivery failed: %v", e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// LoggedDeliveryFailedError reports a command that reached the device but
// could not be written to the execution log.
type LoggedDeliveryFailedError struct {
	Cause error
}

func (e *LoggedDeliveryFailedError) Error() string {
	return fmt.Sprintf("dispatch: command delivered but not logged: %v", e.Cause)
}

func (e *LoggedDeliveryFailedError) Unwrap() error { return e.Cause }

// IsDelivered reports whether err still means the device received the
// command.
func IsDelivered(err error) bool {
	var lf *LoggedDeliveryFailedError
	return err == nil || errors.As(err, &lf)
}
