package repository

import (
	"context"

	"github.com/honeynil/RentalOrderService/internal/models"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.SaleAppointment) (int32, error)
	GetByID(ctx context.Context, id int32) (*models.SaleAppointment, error)
	ListByUser(ctx context.Context, userID int32, role models.Role) ([]models.SaleAppointment, error)
	UpdateStatus(ctx context.Context, id int32, from, to models.AppointmentStatus) error
}
