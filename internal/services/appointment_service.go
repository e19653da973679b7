package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
)

type CreateAppointmentInput struct {
	BuyerID     int32
	VehicleID   int32
	Date        time.Time
	Time        string
	Location    string
	Description string
}

func (s *orderService) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*models.SaleAppointment, error) {
	ctx, span := startSpan(ctx, "CreateAppointment")
	defer span.End()

	if in.BuyerID <= 0 || in.VehicleID <= 0 || in.Date.IsZero() ||
		strings.TrimSpace(in.Time) == "" || strings.TrimSpace(in.Location) == "" {
		err := fmt.Errorf("%w: buyer, vehicle, date, time and location are required", pkgerrors.ErrInvalidInput)
		failSpan(span, err, "invalid input")
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, in.BuyerID); err != nil {
		failSpan(span, err, "buyer lookup failed")
		slog.Error("buyer lookup failed", "buyer_id", in.BuyerID, "error", err)
		return nil, err
	}
	vehicle, err := s.vehicles.GetByID(ctx, in.VehicleID)
	if err != nil {
		failSpan(span, err, "vehicle lookup failed")
		slog.Error("vehicle lookup failed", "vehicle_id", in.VehicleID, "error", err)
		return nil, err
	}
	if vehicle.OwnerID == in.BuyerID {
		err = fmt.Errorf("%w: buyer %d owns vehicle %d", pkgerrors.ErrInvalidInput, in.BuyerID, in.VehicleID)
		failSpan(span, err, "self appointment")
		return nil, err
	}

	// The seller is fixed at booking time; later ownership changes do not move it.
	appt := &models.SaleAppointment{
		BuyerID:     in.BuyerID,
		SellerID:    vehicle.OwnerID,
		VehicleID:   in.VehicleID,
		Date:        in.Date,
		Time:        in.Time,
		Location:    in.Location,
		Description: in.Description,
		Status:      models.AppointmentPending,
	}
	if _, err := s.appointments.Create(ctx, appt); err != nil {
		failSpan(span, err, "appointment creation failed")
		return nil, err
	}
	s.recordTransition(ctx, "appointment", appt.ID, "", string(models.AppointmentPending), "requested")

	slog.Info("appointment created", "appointment_id", appt.ID, "buyer_id", appt.BuyerID, "seller_id", appt.SellerID)
	return appt, nil
}

func (s *orderService) GetAppointment(ctx context.Context, id int32) (*models.SaleAppointment, error) {
	ctx, span := startSpan(ctx, "GetAppointment")
	defer span.End()

	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		failSpan(span, err, "appointment lookup failed")
		return nil, err
	}
	return appt, nil
}

func (s *orderService) ListAppointments(ctx context.Context, userID int32, role models.Role) ([]models.SaleAppointment, error) {
	ctx, span := startSpan(ctx, "ListAppointments")
	defer span.End()

	if !role.Valid() {
		err := fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, role)
		failSpan(span, err, "invalid role")
		return nil, err
	}
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", pkgerrors.ErrInvalidInput)
	}
	appts, err := s.appointments.ListByUser(ctx, userID, role)
	if err != nil {
		failSpan(span, err, "list appointments failed")
		return nil, err
	}
	return appts, nil
}

// UpdateAppointmentStatus applies a role-qualified transition. The party that
// did not act is the one notified.
func (s *orderService) UpdateAppointmentStatus(ctx context.Context, id int32, target models.AppointmentStatus, role models.Role, reason string) (*models.SaleAppointment, error) {
	ctx, span := startSpan(ctx, "UpdateAppointmentStatus")
	defer span.End()

	if !role.Valid() {
		err := fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, role)
		failSpan(span, err, "invalid role")
		slog.Warn("rejected appointment update", "appointment_id", id, "role", role)
		return nil, err
	}
	if !target.Valid() {
		err := fmt.Errorf("%w: unknown appointment status %q", pkgerrors.ErrInvalidInput, target)
		failSpan(span, err, "invalid status")
		return nil, err
	}

	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		failSpan(span, err, "appointment lookup failed")
		return nil, err
	}
	if !appt.Status.CanTransitionTo(target) {
		err = fmt.Errorf("%w: appointment %s -> %s", pkgerrors.ErrInvalidTransition, appt.Status, target)
		failSpan(span, err, "invalid transition")
		slog.Warn("rejected appointment transition", "appointment_id", id, "from", appt.Status, "to", target, "role", role)
		return nil, err
	}

	from := appt.Status
	if err := s.appointments.UpdateStatus(ctx, id, from, target); err != nil {
		failSpan(span, err, "status update failed")
		slog.Error("failed to update appointment status", "appointment_id", id, "from", from, "to", target, "error", err)
		return nil, err
	}
	appt.Status = target
	s.recordTransition(ctx, "appointment", id, string(from), string(target), reason)
	slog.Info("appointment status updated", "appointment_id", id, "from", from, "to", target, "role", role)

	recipient := appt.Counterparty(role)
	switch target {
	case models.AppointmentCancelled:
		subject, body := appointmentCancelledMessage(appt, role, reason)
		s.notify(ctx, recipient, models.NotifyAppointmentCancelled, subject, body)
	case models.AppointmentConfirmed:
		subject, body := appointmentConfirmedMessage(appt, role)
		s.notify(ctx, recipient, models.NotifyAppointmentConfirmed, subject, body)
	}

	return appt, nil
}
