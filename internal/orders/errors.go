package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrLockTimeout        = errors.New("lock timeout")
	ErrNotFound           = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// ProductError names the product that failed a reservation.
type ProductError struct {
	Err       error
	ProductID int64
	Requested int
	Available int
}

func (e *ProductError) Error() string {
	if errors.Is(e.Err, ErrInsufficientStock) {
		return fmt.Sprintf("%v: product %d has %d available, %d requested", e.Err, e.ProductID, e.Available, e.Requested)
	}
	return fmt.Sprintf("%v: product %d", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

// TransitionError rejects a status change. To holds the requested value as given.
type TransitionError struct {
	From Status
	To   string
}

func (e *TransitionError) Error() string {
	if _, ok := ParseStatus(e.To); !ok {
		return fmt.Sprintf("%v: unknown status %q", ErrInvalidTransition, e.To)
	}
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// KindOf returns the machine-readable kind of err, or "internal".
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return "internal"
}

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool { return errors.Is(err, ErrLockTimeout) }
