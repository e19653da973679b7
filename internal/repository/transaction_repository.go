package repository

import (
	"context"
	"time"

	"github.com/honeynil/RentalOrderService/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (int32, error)
	GetByExternalID(ctx context.Context, externalPaymentID string) (*models.Transaction, error)
	GetByRentalID(ctx context.Context, rentalID int32) (*models.Transaction, error)
	// ClaimPendingBefore returns up to limit pending transactions created before
	// the cutoff, least recently checked first, and marks them checked.
	ClaimPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error)
	// Settle moves the transaction pending -> to and its rental pending -> rentalTo
	// atomically. It returns ErrConflict when the transaction already left pending.
	Settle(ctx context.Context, externalPaymentID string, to models.TransactionStatus, rentalTo models.RentalStatus) (*models.Transaction, error)
}
