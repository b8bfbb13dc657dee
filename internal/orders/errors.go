package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order conflict")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidEvent      = errors.New("invalid payment event")
	ErrDuplicateEvent    = errors.New("payment event already processed")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrStaleEvent        = errors.New("stale payment event")
	ErrVersionConflict   = errors.New("order version changed concurrently")
)

// IsRejection reports whether err is a business-rule rejection of an event
// that leaves the order untouched and must not be retried.
func IsRejection(err error) bool {
	return errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrStaleEvent)
}
