package repository

import (
	"context"

	"github.com/honeynil/RentalOrderService/internal/models"
)

type RentalRepository interface {
	Create(ctx context.Context, rental *models.Rental) (int32, error)
	GetByID(ctx context.Context, id int32) (*models.Rental, error)
	ListByRenter(ctx context.Context, renterID int32) ([]models.Rental, error)
	// UpdateStatus moves the rental from -> to only if it is still in from.
	// When cascade is non-nil a pending transaction of the rental is moved to
	// *cascade in the same database transaction.
	UpdateStatus(ctx context.Context, id int32, from, to models.RentalStatus, cascade *models.TransactionStatus) error
}
