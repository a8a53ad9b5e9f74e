package vgic

import "errors"

var (
	ErrRegistryFull        = errors.New("virq registry full")
	ErrAlreadyRegistered   = errors.New("virq already registered")
	ErrNotRegistered       = errors.New("virq not registered")
	ErrMasked              = errors.New("virq masked")
	ErrDistributorDisabled = errors.New("distributor disabled")
	ErrQueueOverflow       = errors.New("irq queue overflow")
	ErrBadVCPU             = errors.New("vcpu not attached")
	ErrBadVIRQ             = errors.New("virq out of range")
)

// injectRejected reports whether an injection error is a guest-visible
// precondition, which advances the fault, rather than an internal
// failure.
func injectRejected(err error) bool {
	return errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrMasked) ||
		errors.Is(err, ErrDistributorDisabled) ||
		errors.Is(err, ErrBadVCPU)
}
