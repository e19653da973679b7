package repository

import (
	"context"

	"github.com/honeynil/RentalOrderService/internal/models"
)

// UserRepository and VehicleRepository are read-only views of records owned
// by the listing and profile services.
type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*models.User, error)
}

type VehicleRepository interface {
	GetByID(ctx context.Context, id int32) (*models.Vehicle, error)
}
