package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int32) (user *models.User, err error) {
	ctx, done := instrument(ctx, "user-repository", "GetUserByID", attribute.Int("user_id", int(id)))
	defer done(&err)

	user = &models.User{}
	query := `SELECT id, full_name, email, created_at FROM users WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.FullName, &user.Email, &user.CreatedAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get user", "method", "GetByID", "user_id", id, "error", err)
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

type PostgresVehicleRepository struct {
	db *sql.DB
}

func NewPostgresVehicleRepository(db *sql.DB) *PostgresVehicleRepository {
	return &PostgresVehicleRepository{db: db}
}

func (r *PostgresVehicleRepository) GetByID(ctx context.Context, id int32) (vehicle *models.Vehicle, err error) {
	ctx, done := instrument(ctx, "vehicle-repository", "GetVehicleByID", attribute.Int("vehicle_id", int(id)))
	defer done(&err)

	vehicle = &models.Vehicle{}
	query := `SELECT id, owner_id, title, created_at FROM vehicles WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(&vehicle.ID, &vehicle.OwnerID, &vehicle.Title, &vehicle.CreatedAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrVehicleNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get vehicle", "method", "GetByID", "vehicle_id", id, "error", err)
		return nil, fmt.Errorf("failed to get vehicle by id: %w", err)
	}
	return vehicle, nil
}
