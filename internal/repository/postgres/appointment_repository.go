package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const appointmentTracer = "appointment-repository"

const appointmentColumns = `id, buyer_id, seller_id, vehicle_id, date, time, location, description, status, created_at, updated_at`

type PostgresAppointmentRepository struct {
	db *sql.DB
}

func NewPostgresAppointmentRepository(db *sql.DB) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{db: db}
}

func (r *PostgresAppointmentRepository) Create(ctx context.Context, appt *models.SaleAppointment) (id int32, err error) {
	ctx, done := instrument(ctx, appointmentTracer, "CreateAppointment")
	defer done(&err)

	if appt == nil {
		err = pkgerrors.ErrNilAppointment
		return 0, err
	}
	if appt.SellerID == 0 || appt.BuyerID == 0 || strings.TrimSpace(appt.Location) == "" {
		err = fmt.Errorf("%w: buyer, seller and location are required", pkgerrors.ErrInvalidInput)
		slog.Error("invalid appointment", "method", "Create", "error", err)
		return 0, err
	}

	query := `INSERT INTO sale_appointments (buyer_id, seller_id, vehicle_id, date, time, location, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		appt.BuyerID, appt.SellerID, appt.VehicleID, appt.Date, appt.Time, appt.Location, appt.Description, appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		slog.Error("failed to create appointment", "method", "Create", "buyer_id", appt.BuyerID, "vehicle_id", appt.VehicleID, "error", err)
		return 0, fmt.Errorf("failed to create appointment: %w", err)
	}

	slog.Info("appointment created", "method", "Create", "id", appt.ID, "buyer_id", appt.BuyerID, "seller_id", appt.SellerID)
	return appt.ID, nil
}

func (r *PostgresAppointmentRepository) GetByID(ctx context.Context, id int32) (appt *models.SaleAppointment, err error) {
	ctx, done := instrument(ctx, appointmentTracer, "GetAppointmentByID", attribute.Int("appointment_id", int(id)))
	defer done(&err)

	query := `SELECT ` + appointmentColumns + ` FROM sale_appointments WHERE id = $1`
	appt, err = scanAppointment(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrAppointmentNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get appointment", "method", "GetByID", "appointment_id", id, "error", err)
		return nil, fmt.Errorf("failed to get appointment by id: %w", err)
	}
	return appt, nil
}

func (r *PostgresAppointmentRepository) ListByUser(ctx context.Context, userID int32, role models.Role) (appts []models.SaleAppointment, err error) {
	ctx, done := instrument(ctx, appointmentTracer, "ListAppointmentsByUser", attribute.Int("user_id", int(userID)))
	defer done(&err)

	column := "buyer_id"
	if role == models.RoleSeller {
		column = "seller_id"
	}
	query := `SELECT ` + appointmentColumns + ` FROM sale_appointments WHERE ` + column + ` = $1 ORDER BY date DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list appointments", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appts = []models.SaleAppointment{}
	for rows.Next() {
		var appt *models.SaleAppointment
		appt, err = scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, *appt)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appts, nil
}

func (r *PostgresAppointmentRepository) UpdateStatus(ctx context.Context, id int32, from, to models.AppointmentStatus) (err error) {
	ctx, done := instrument(ctx, appointmentTracer, "UpdateAppointmentStatus",
		attribute.Int("appointment_id", int(id)),
		attribute.String("to", string(to)),
	)
	defer done(&err)

	res, err := r.db.ExecContext(ctx,
		`UPDATE sale_appointments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		slog.Error("failed to update appointment status", "method", "UpdateStatus", "appointment_id", id, "error", err)
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: appointment %d is no longer %s", pkgerrors.ErrConflict, id, from)
		return err
	}

	slog.Info("appointment status updated", "method", "UpdateStatus", "appointment_id", id, "from", from, "to", to)
	return nil
}

func scanAppointment(row rowScanner) (*models.SaleAppointment, error) {
	var appt models.SaleAppointment
	err := row.Scan(&appt.ID, &appt.BuyerID, &appt.SellerID, &appt.VehicleID, &appt.Date, &appt.Time,
		&appt.Location, &appt.Description, &appt.Status, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}
