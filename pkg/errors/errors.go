package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrRentalNotFound      = fmt.Errorf("rental %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrVehicleNotFound     = fmt.Errorf("vehicle %w", ErrNotFound)

	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrInvalidRole             = errors.New("invalid role")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrNotifierUnavailable     = errors.New("notification gateway unavailable")
	ErrConflict                = errors.New("concurrent modification")
	ErrAmountMismatch          = fmt.Errorf("%w: paid amount does not match transaction", ErrConflict)
	ErrPaymentAlreadyInitiated = errors.New("payment already initiated for rental")
	ErrDuplicatePaymentID      = errors.New("external payment id already exists")

	ErrNilRental      = errors.New("rental is nil")
	ErrNilTransaction = errors.New("transaction is nil")
	ErrNilAppointment = errors.New("appointment is nil")
	ErrInvalidInput   = errors.New("invalid input")
)
