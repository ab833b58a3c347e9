package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrNoVehicleAvailable  = errors.New("no vehicle available")
	ErrDistanceUnavailable = errors.New("distance unavailable")
	ErrSolverUnavailable   = errors.New("solver unavailable")
	ErrSolverFailed        = errors.New("solver failed")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
