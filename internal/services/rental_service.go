package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	stderrors "errors"

	"github.com/honeynil/RentalOrderService/internal/infrastructure/payment"
	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/shopspring/decimal"
)

type CreateRentalInput struct {
	RenterID        int32
	VehicleID       int32
	PickupLocation  string
	ReturnLocation  string
	PickupAt        time.Time
	ReturnAt        time.Time
	RentalType      models.RentalType
	DriveOption     models.DriveOption
	PaymentMethod   models.PaymentMethod
	TotalAmount     decimal.Decimal
	RentalDuration  int32
	LicenseImageRef string
}

// BookingResult is returned by booking and payment retry. PaymentURL is set
// when the renter must be redirected to the gateway; PaymentRetryRequired when
// the gateway could not be reached and the rental stays pending without a
// transaction.
type BookingResult struct {
	Rental               *models.Rental      `json:"rental"`
	Transaction          *models.Transaction `json:"transaction,omitempty"`
	PaymentURL           string              `json:"payment_url,omitempty"`
	PaymentRetryRequired bool                `json:"payment_retry_required,omitempty"`
}

var rentalUnits = map[models.RentalType]time.Duration{
	models.RentalHourly:  time.Hour,
	models.RentalDaily:   24 * time.Hour,
	models.RentalWeekly:  7 * 24 * time.Hour,
	models.RentalMonthly: 30 * 24 * time.Hour,
}

// rentalDuration is the number of started billing units between pickup and return.
func rentalDuration(t models.RentalType, pickup, ret time.Time) int32 {
	units := math.Ceil(float64(ret.Sub(pickup)) / float64(rentalUnits[t]))
	if units < 1 {
		return 1
	}
	return int32(units)
}

func (in CreateRentalInput) validate() error {
	switch {
	case in.RenterID <= 0 || in.VehicleID <= 0:
		return fmt.Errorf("%w: renter and vehicle are required", pkgerrors.ErrInvalidInput)
	case strings.TrimSpace(in.PickupLocation) == "" || strings.TrimSpace(in.ReturnLocation) == "":
		return fmt.Errorf("%w: pickup and return locations are required", pkgerrors.ErrInvalidInput)
	case in.PickupAt.IsZero() || !in.ReturnAt.After(in.PickupAt):
		return fmt.Errorf("%w: return must be after pickup", pkgerrors.ErrInvalidInput)
	case !in.RentalType.Valid():
		return fmt.Errorf("%w: unknown rental type %q", pkgerrors.ErrInvalidInput, in.RentalType)
	case !in.DriveOption.Valid():
		return fmt.Errorf("%w: unknown drive option %q", pkgerrors.ErrInvalidInput, in.DriveOption)
	case !in.PaymentMethod.Valid():
		return fmt.Errorf("%w: unknown payment method %q", pkgerrors.ErrInvalidInput, in.PaymentMethod)
	case !in.TotalAmount.IsPositive():
		return fmt.Errorf("%w: total amount must be positive", pkgerrors.ErrInvalidInput)
	case !in.TotalAmount.Equal(in.TotalAmount.Round(2)):
		return fmt.Errorf("%w: total amount has more than two decimal places", pkgerrors.ErrInvalidInput)
	case in.RentalDuration < 0:
		return fmt.Errorf("%w: rental duration must not be negative", pkgerrors.ErrInvalidInput)
	}
	return nil
}

func (s *orderService) CreateRental(ctx context.Context, in CreateRentalInput) (*BookingResult, error) {
	ctx, span := startSpan(ctx, "CreateRental")
	defer span.End()

	if err := in.validate(); err != nil {
		failSpan(span, err, "invalid input")
		return nil, err
	}

	// Both parties are checked before anything is written.
	renter, err := s.users.GetByID(ctx, in.RenterID)
	if err != nil {
		failSpan(span, err, "renter lookup failed")
		slog.Error("renter lookup failed", "renter_id", in.RenterID, "error", err)
		return nil, err
	}
	if _, err := s.vehicles.GetByID(ctx, in.VehicleID); err != nil {
		failSpan(span, err, "vehicle lookup failed")
		slog.Error("vehicle lookup failed", "vehicle_id", in.VehicleID, "error", err)
		return nil, err
	}

	duration := in.RentalDuration
	if duration == 0 {
		duration = rentalDuration(in.RentalType, in.PickupAt, in.ReturnAt)
	}

	rental := &models.Rental{
		RenterID:        in.RenterID,
		VehicleID:       in.VehicleID,
		PickupLocation:  in.PickupLocation,
		ReturnLocation:  in.ReturnLocation,
		PickupAt:        in.PickupAt,
		ReturnAt:        in.ReturnAt,
		RentalType:      in.RentalType,
		DriveOption:     in.DriveOption,
		PaymentMethod:   in.PaymentMethod,
		TotalAmount:     in.TotalAmount,
		RentalDuration:  duration,
		LicenseImageRef: in.LicenseImageRef,
		Status:          models.RentalPending,
	}
	if _, err := s.rentals.Create(ctx, rental); err != nil {
		failSpan(span, err, "rental creation failed")
		return nil, err
	}
	s.recordTransition(ctx, "rental", rental.ID, "", string(models.RentalPending), "booked")

	result := &BookingResult{Rental: rental}
	if rental.PaymentMethod != models.PayOnline {
		slog.Info("rental booked", "rental_id", rental.ID, "payment_method", rental.PaymentMethod)
		return result, nil
	}

	tx, paymentURL, err := s.initiatePayment(ctx, rental, renter)
	if err != nil {
		// The rental is already committed; anything short of a rejected
		// request leaves it pending for RetryPayment.
		if !stderrors.Is(err, pkgerrors.ErrInvalidInput) {
			span.RecordError(err)
			slog.Warn("rental booked without payment, retry required", "rental_id", rental.ID, "error", err)
			result.PaymentRetryRequired = true
			return result, nil
		}
		failSpan(span, err, "payment initiation failed")
		return nil, err
	}

	result.Transaction = tx
	result.PaymentURL = paymentURL
	slog.Info("rental booked, awaiting payment", "rental_id", rental.ID, "pidx", tx.ExternalPaymentID)
	return result, nil
}

// initiatePayment registers a payment attempt with the gateway and records
// the pending transaction for it.
func (s *orderService) initiatePayment(ctx context.Context, rental *models.Rental, renter *models.User) (*models.Transaction, string, error) {
	initCtx, cancel := context.WithTimeout(ctx, s.opts.InitiateTimeout)
	defer cancel()

	req := payment.InitiateRequest{
		Amount:            rental.TotalAmount,
		PurchaseOrderID:   fmt.Sprintf("rental-%d", rental.ID),
		PurchaseOrderName: fmt.Sprintf("Vehicle rental #%d", rental.ID),
	}
	if renter != nil {
		req.CustomerName = renter.FullName
		req.CustomerEmail = renter.Email
	}

	resp, err := s.gateway.Initiate(initCtx, req)
	if err != nil {
		if !stderrors.Is(err, pkgerrors.ErrGatewayUnavailable) && !stderrors.Is(err, pkgerrors.ErrInvalidInput) {
			err = fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
		}
		return nil, "", err
	}

	tx := &models.Transaction{
		RentalID:          rental.ID,
		ExternalPaymentID: resp.PaymentID,
		Amount:            rental.TotalAmount,
		Status:            models.TransactionPending,
	}
	if _, err := s.transactions.Create(ctx, tx); err != nil {
		slog.Error("failed to record transaction", "rental_id", rental.ID, "pidx", resp.PaymentID, "error", err)
		return nil, "", err
	}
	s.recordTransition(ctx, "transaction", tx.ID, "", string(models.TransactionPending), "initiated")
	return tx, resp.RedirectURL, nil
}

func (s *orderService) RetryPayment(ctx context.Context, rentalID int32) (*BookingResult, error) {
	ctx, span := startSpan(ctx, "RetryPayment")
	defer span.End()

	rental, err := s.rentals.GetByID(ctx, rentalID)
	if err != nil {
		failSpan(span, err, "rental lookup failed")
		return nil, err
	}
	if rental.PaymentMethod != models.PayOnline {
		err = fmt.Errorf("%w: rental %d is not paid online", pkgerrors.ErrInvalidInput, rentalID)
		failSpan(span, err, "not an online rental")
		return nil, err
	}
	if rental.Status != models.RentalPending {
		err = fmt.Errorf("%w: rental %d is %s", pkgerrors.ErrInvalidTransition, rentalID, rental.Status)
		failSpan(span, err, "rental not pending")
		return nil, err
	}

	existing, err := s.transactions.GetByRentalID(ctx, rentalID)
	if err == nil {
		err = fmt.Errorf("%w: rental %d already has payment %s", pkgerrors.ErrPaymentAlreadyInitiated, rentalID, existing.ExternalPaymentID)
		failSpan(span, err, "payment already initiated")
		return nil, err
	}
	if !stderrors.Is(err, pkgerrors.ErrNotFound) {
		failSpan(span, err, "transaction lookup failed")
		return nil, err
	}

	renter, err := s.users.GetByID(ctx, rental.RenterID)
	if err != nil {
		slog.Warn("renter lookup failed, initiating without customer info", "rental_id", rentalID, "error", err)
	}

	tx, paymentURL, err := s.initiatePayment(ctx, rental, renter)
	if err != nil {
		failSpan(span, err, "payment initiation failed")
		return nil, err
	}

	slog.Info("payment re-initiated", "rental_id", rentalID, "pidx", tx.ExternalPaymentID)
	return &BookingResult{Rental: rental, Transaction: tx, PaymentURL: paymentURL}, nil
}

func (s *orderService) GetRental(ctx context.Context, rentalID int32) (*models.RentalDetails, error) {
	ctx, span := startSpan(ctx, "GetRental")
	defer span.End()

	rental, err := s.rentals.GetByID(ctx, rentalID)
	if err != nil {
		failSpan(span, err, "rental lookup failed")
		return nil, err
	}
	tx, err := s.transactionOf(ctx, rentalID)
	if err != nil {
		failSpan(span, err, "transaction lookup failed")
		return nil, err
	}
	return &models.RentalDetails{Rental: rental, Transaction: tx}, nil
}

func (s *orderService) ListRentals(ctx context.Context, renterID int32) ([]models.Rental, error) {
	ctx, span := startSpan(ctx, "ListRentals")
	defer span.End()

	if renterID <= 0 {
		return nil, fmt.Errorf("%w: renter_id is required", pkgerrors.ErrInvalidInput)
	}
	rentals, err := s.rentals.ListByRenter(ctx, renterID)
	if err != nil {
		failSpan(span, err, "list rentals failed")
		return nil, err
	}
	return rentals, nil
}

// transactionOf returns the rental's transaction, or nil for rentals without one.
func (s *orderService) transactionOf(ctx context.Context, rentalID int32) (*models.Transaction, error) {
	tx, err := s.transactions.GetByRentalID(ctx, rentalID)
	if stderrors.Is(err, pkgerrors.ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

func (s *orderService) UpdateRentalStatus(ctx context.Context, rentalID int32, target models.RentalStatus, reason string) (*models.RentalDetails, error) {
	ctx, span := startSpan(ctx, "UpdateRentalStatus")
	defer span.End()

	if !target.Valid() {
		err := fmt.Errorf("%w: unknown rental status %q", pkgerrors.ErrInvalidInput, target)
		failSpan(span, err, "invalid status")
		return nil, err
	}

	rental, err := s.rentals.GetByID(ctx, rentalID)
	if err != nil {
		failSpan(span, err, "rental lookup failed")
		return nil, err
	}
	if !rental.Status.CanTransitionTo(target) {
		err = fmt.Errorf("%w: rental %s -> %s", pkgerrors.ErrInvalidTransition, rental.Status, target)
		failSpan(span, err, "invalid transition")
		slog.Warn("rejected rental transition", "rental_id", rentalID, "from", rental.Status, "to", target)
		return nil, err
	}

	tx, err := s.transactionOf(ctx, rentalID)
	if err != nil {
		failSpan(span, err, "transaction lookup failed")
		return nil, err
	}

	// An online rental only becomes active through a paid transaction.
	if target == models.RentalActive && rental.PaymentMethod == models.PayOnline &&
		(tx == nil || tx.Status != models.TransactionPaid) {
		err = fmt.Errorf("%w: rental %d has no paid transaction", pkgerrors.ErrInvalidTransition, rentalID)
		failSpan(span, err, "payment required")
		return nil, err
	}

	var cascade *models.TransactionStatus
	if target == models.RentalCancelled && tx != nil && !tx.Status.IsTerminal() {
		cancelled := models.TransactionCancelled
		cascade = &cancelled
	}

	from := rental.Status
	if err := s.rentals.UpdateStatus(ctx, rentalID, from, target, cascade); err != nil {
		failSpan(span, err, "status update failed")
		slog.Error("failed to update rental status", "rental_id", rentalID, "from", from, "to", target, "error", err)
		return nil, err
	}

	rental.Status = target
	s.recordTransition(ctx, "rental", rentalID, string(from), string(target), reason)
	if cascade != nil {
		s.recordTransition(ctx, "transaction", tx.ID, string(tx.Status), string(*cascade), reason)
		tx.Status = *cascade
	}

	slog.Info("rental status updated", "rental_id", rentalID, "from", from, "to", target, "reason", reason)

	if target == models.RentalCancelled {
		subject, body := rentalCancelledMessage(rental, reason)
		s.notify(ctx, rental.RenterID, models.NotifyRentalCancelled, subject, body)
	}

	return &models.RentalDetails{Rental: rental, Transaction: tx}, nil
}
