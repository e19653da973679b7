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

const rentalTracer = "rental-repository"

const rentalColumns = `id, renter_id, vehicle_id, pickup_location, return_location, pickup_at, return_at,
	rental_type, drive_option, payment_method, total_amount, rental_duration, license_image_ref,
	status, created_at, updated_at`

type PostgresRentalRepository struct {
	db *sql.DB
}

func NewPostgresRentalRepository(db *sql.DB) *PostgresRentalRepository {
	return &PostgresRentalRepository{db: db}
}

func (r *PostgresRentalRepository) Create(ctx context.Context, rental *models.Rental) (id int32, err error) {
	ctx, done := instrument(ctx, rentalTracer, "CreateRental")
	defer done(&err)

	if rental == nil {
		err = pkgerrors.ErrNilRental
		slog.Error("failed to create rental", "method", "Create", "error", err)
		return 0, err
	}
	if err = validateRental(rental); err != nil {
		slog.Error("invalid rental", "method", "Create", "renter_id", rental.RenterID, "error", err)
		return 0, err
	}

	query := `INSERT INTO rentals (renter_id, vehicle_id, pickup_location, return_location, pickup_at, return_at,
		rental_type, drive_option, payment_method, total_amount, rental_duration, license_image_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		rental.RenterID, rental.VehicleID, rental.PickupLocation, rental.ReturnLocation,
		rental.PickupAt, rental.ReturnAt, rental.RentalType, rental.DriveOption, rental.PaymentMethod,
		rental.TotalAmount, rental.RentalDuration, rental.LicenseImageRef, rental.Status,
	).Scan(&rental.ID, &rental.CreatedAt, &rental.UpdatedAt)
	if err != nil {
		slog.Error("failed to create rental", "method", "Create", "renter_id", rental.RenterID, "vehicle_id", rental.VehicleID, "error", err)
		return 0, fmt.Errorf("failed to create rental: %w", err)
	}

	slog.Info("rental created", "method", "Create", "id", rental.ID, "renter_id", rental.RenterID, "payment_method", rental.PaymentMethod)
	return rental.ID, nil
}

func validateRental(rental *models.Rental) error {
	switch {
	case !rental.RentalType.Valid():
		return fmt.Errorf("%w: rental type %q", pkgerrors.ErrInvalidInput, rental.RentalType)
	case !rental.DriveOption.Valid():
		return fmt.Errorf("%w: drive option %q", pkgerrors.ErrInvalidInput, rental.DriveOption)
	case !rental.PaymentMethod.Valid():
		return fmt.Errorf("%w: payment method %q", pkgerrors.ErrInvalidInput, rental.PaymentMethod)
	case !rental.TotalAmount.IsPositive():
		return fmt.Errorf("%w: total amount must be positive", pkgerrors.ErrInvalidInput)
	case rental.Status != models.RentalPending:
		return fmt.Errorf("%w: rental must be created pending", pkgerrors.ErrInvalidInput)
	}
	return nil
}

func (r *PostgresRentalRepository) GetByID(ctx context.Context, id int32) (rental *models.Rental, err error) {
	ctx, done := instrument(ctx, rentalTracer, "GetRentalByID", attribute.Int("rental_id", int(id)))
	defer done(&err)

	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	rental, err = scanRental(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrRentalNotFound
		slog.Warn("rental not found", "method", "GetByID", "rental_id", id)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get rental", "method", "GetByID", "rental_id", id, "error", err)
		return nil, fmt.Errorf("failed to get rental by id: %w", err)
	}
	return rental, nil
}

func (r *PostgresRentalRepository) ListByRenter(ctx context.Context, renterID int32) (rentals []models.Rental, err error) {
	ctx, done := instrument(ctx, rentalTracer, "ListRentalsByRenter", attribute.Int("renter_id", int(renterID)))
	defer done(&err)

	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE renter_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, renterID)
	if err != nil {
		slog.Error("failed to list rentals", "method", "ListByRenter", "renter_id", renterID, "error", err)
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	defer rows.Close()

	rentals = []models.Rental{}
	for rows.Next() {
		var rental *models.Rental
		rental, err = scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, *rental)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rentals: %w", err)
	}
	return rentals, nil
}

func (r *PostgresRentalRepository) UpdateStatus(ctx context.Context, id int32, from, to models.RentalStatus, cascade *models.TransactionStatus) (err error) {
	ctx, done := instrument(ctx, rentalTracer, "UpdateRentalStatus",
		attribute.Int("rental_id", int(id)),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)
	defer done(&err)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "UpdateStatus", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := dbTx.ExecContext(ctx,
		`UPDATE rentals SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		err = rollback(dbTx, "UpdateStatus", fmt.Errorf("failed to update rental status: %w", err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = rollback(dbTx, "UpdateStatus", fmt.Errorf("%w: rental %d is no longer %s", pkgerrors.ErrConflict, id, from))
		return err
	}

	if cascade != nil {
		_, err = dbTx.ExecContext(ctx,
			`UPDATE transactions SET status = $1, updated_at = NOW() WHERE rental_id = $2 AND status = 'pending'`,
			*cascade, id)
		if err != nil {
			err = rollback(dbTx, "UpdateStatus", fmt.Errorf("failed to update transaction status: %w", err))
			return err
		}
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "UpdateStatus", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("rental status updated", "method", "UpdateStatus", "rental_id", id, "from", from, "to", to)
	return nil
}

func scanRental(row rowScanner) (*models.Rental, error) {
	var rental models.Rental
	err := row.Scan(
		&rental.ID, &rental.RenterID, &rental.VehicleID, &rental.PickupLocation, &rental.ReturnLocation,
		&rental.PickupAt, &rental.ReturnAt, &rental.RentalType, &rental.DriveOption, &rental.PaymentMethod,
		&rental.TotalAmount, &rental.RentalDuration, &rental.LicenseImageRef,
		&rental.Status, &rental.CreatedAt, &rental.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rental, nil
}
