package notifier

import (
	"errors"
	"fmt"
)

var (
	// ErrSkipped marks a send that was intentionally not attempted.
	ErrSkipped = errors.New("notifier: skipped")
	// ErrDelivery matches every *DeliveryError.
	ErrDelivery = errors.New("notifier: delivery failed")
)

// DeliveryError is a send that was attempted and failed.
type DeliveryError struct {
	Driver   string
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("notifier: %s delivery failed after %d attempt(s): %v", e.Driver, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// Permanent marks a sender error as not worth retrying (bad credentials,
// rejected payload).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err is wrapped with Permanent.
func IsPermanent(err error) bool {
	var e permanentError
	return errors.As(err, &e)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func skipped(reason string) error { return fmt.Errorf("%w: %s", ErrSkipped, reason) }
