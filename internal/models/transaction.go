package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID                int32             `json:"id"`
	RentalID          int32             `json:"rental_id"`
	ExternalPaymentID string            `json:"external_payment_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionPaid      TransactionStatus = "paid"
	TransactionCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionPaid, TransactionCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition out of s exists.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionPaid || s == TransactionCancelled
}

// CanTransitionTo allows pending -> paid and pending -> cancelled only.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	return s == TransactionPending && (target == TransactionPaid || target == TransactionCancelled)
}
