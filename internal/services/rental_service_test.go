package service

import (
	"context"
	"testing"
	"time"

	"github.com/honeynil/RentalOrderService/internal/infrastructure/payment"
	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func rentalInput(method models.PaymentMethod) CreateRentalInput {
	pickup := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return CreateRentalInput{
		RenterID:       renterID,
		VehicleID:      carID,
		PickupLocation: "Kathmandu",
		ReturnLocation: "Pokhara",
		PickupAt:       pickup,
		ReturnAt:       pickup.Add(50 * time.Hour),
		RentalType:     models.RentalDaily,
		DriveOption:    models.SelfDrive,
		PaymentMethod:  method,
		TotalAmount:    decimal.NewFromInt(1000),
	}
}

func TestRentalDuration(t *testing.T) {
	pickup := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		typ   models.RentalType
		after time.Duration
		want  int32
	}{
		{"partial day counts", models.RentalDaily, 50 * time.Hour, 3},
		{"exact hours", models.RentalHourly, 5 * time.Hour, 5},
		{"short week", models.RentalWeekly, 48 * time.Hour, 1},
		{"two months", models.RentalMonthly, 45 * 24 * time.Hour, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rentalDuration(tt.typ, pickup, pickup.Add(tt.after)))
		})
	}
}

func TestOrderService_CreateRental(t *testing.T) {
	ctx := context.Background()

	t.Run("pay-later never acquires a transaction", func(t *testing.T) {
		f := newFixture()

		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayLater))
		require.NoError(t, err)
		assert.Equal(t, models.RentalPending, res.Rental.Status)
		assert.Equal(t, int32(3), res.Rental.RentalDuration)
		assert.Nil(t, res.Transaction)
		assert.Empty(t, res.PaymentURL)

		_, err = f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalActive, "picked up")
		require.NoError(t, err)
		details, err := f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalCompleted, "")
		require.NoError(t, err)
		assert.Equal(t, models.RentalCompleted, details.Rental.Status)
		assert.Nil(t, details.Transaction)

		assert.Equal(t, 0, f.store.transactionCount())
		f.gateway.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	})

	t.Run("online rental records a pending transaction", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Initiate", mock.Anything, mock.MatchedBy(func(req payment.InitiateRequest) bool {
			return req.Amount.Equal(decimal.NewFromInt(1000)) && req.CustomerEmail == "ram@example.com"
		})).Return(&payment.InitiateResponse{PaymentID: "P1", RedirectURL: "https://pay.example/P1"}, nil).Once()

		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayOnline))
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example/P1", res.PaymentURL)
		require.NotNil(t, res.Transaction)
		assert.Equal(t, "P1", res.Transaction.ExternalPaymentID)
		assert.Equal(t, models.TransactionPending, res.Transaction.Status)
		assert.Equal(t, models.RentalPending, f.store.rental(res.Rental.ID).Status)
		assert.Equal(t, 1, f.events.count("transaction", "pending"))
		f.gateway.AssertExpectations(t)
	})

	t.Run("missing vehicle persists nothing", func(t *testing.T) {
		f := newFixture()
		in := rentalInput(models.PayOnline)
		in.VehicleID = 999

		_, err := f.svc.CreateRental(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		assert.Empty(t, f.store.rentals)
		f.gateway.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	})

	t.Run("missing renter persists nothing", func(t *testing.T) {
		f := newFixture()
		in := rentalInput(models.PayLater)
		in.RenterID = 999

		_, err := f.svc.CreateRental(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.Empty(t, f.store.rentals)
	})

	t.Run("return before pickup is rejected", func(t *testing.T) {
		f := newFixture()
		in := rentalInput(models.PayLater)
		in.ReturnAt = in.PickupAt.Add(-time.Hour)

		_, err := f.svc.CreateRental(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		f := newFixture()
		in := rentalInput(models.PayLater)
		in.TotalAmount = decimal.Zero

		_, err := f.svc.CreateRental(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("unrecorded transaction keeps the booking and asks for a retry", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Initiate", mock.Anything, mock.Anything).
			Return(&payment.InitiateResponse{PaymentID: "P1", RedirectURL: "https://pay.example/P1"}, nil).Twice()
		_, err := f.svc.CreateRental(ctx, rentalInput(models.PayOnline))
		require.NoError(t, err)

		// the gateway hands out a pidx that is already stored
		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayOnline))
		require.NoError(t, err)
		assert.True(t, res.PaymentRetryRequired)
		assert.Nil(t, res.Transaction)
		assert.Equal(t, models.RentalPending, f.store.rental(res.Rental.ID).Status)
		assert.Equal(t, 1, f.store.transactionCount())

		f.gateway.On("Initiate", mock.Anything, mock.Anything).
			Return(&payment.InitiateResponse{PaymentID: "P2", RedirectURL: "https://pay.example/P2"}, nil).Once()
		retried, err := f.svc.RetryPayment(ctx, res.Rental.ID)
		require.NoError(t, err)
		assert.Equal(t, "P2", retried.Transaction.ExternalPaymentID)
	})

	t.Run("sub-paisa amount is rejected before anything is written", func(t *testing.T) {
		for _, amount := range []string{"0.004", "10.005"} {
			f := newFixture()
			in := rentalInput(models.PayOnline)
			in.TotalAmount = decimal.RequireFromString(amount)

			res, err := f.svc.CreateRental(ctx, in)
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput, amount)
			assert.Nil(t, res)
			assert.Equal(t, 0, f.store.transactionCount())
			f.gateway.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
		}
	})

	t.Run("two decimal places are accepted", func(t *testing.T) {
		f := newFixture()
		in := rentalInput(models.PayLater)
		in.TotalAmount = decimal.RequireFromString("10.50")

		res, err := f.svc.CreateRental(ctx, in)
		require.NoError(t, err)
		assert.True(t, res.Rental.TotalAmount.Equal(decimal.RequireFromString("10.5")))
	})

	t.Run("gateway outage keeps the booking and asks for a retry", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Initiate", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrGatewayUnavailable).Once()

		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayOnline))
		require.NoError(t, err)
		assert.True(t, res.PaymentRetryRequired)
		assert.Nil(t, res.Transaction)
		assert.Equal(t, models.RentalPending, f.store.rental(res.Rental.ID).Status)
		assert.Equal(t, 0, f.store.transactionCount())

		f.gateway.On("Initiate", mock.Anything, mock.Anything).
			Return(&payment.InitiateResponse{PaymentID: "P2", RedirectURL: "https://pay.example/P2"}, nil).Once()

		retried, err := f.svc.RetryPayment(ctx, res.Rental.ID)
		require.NoError(t, err)
		assert.Equal(t, "P2", retried.Transaction.ExternalPaymentID)
		assert.Equal(t, "https://pay.example/P2", retried.PaymentURL)

		_, err = f.svc.RetryPayment(ctx, res.Rental.ID)
		assert.ErrorIs(t, err, pkgerrors.ErrPaymentAlreadyInitiated)
		f.gateway.AssertExpectations(t)
	})
}

func TestOrderService_RetryPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	payLater, err := f.svc.CreateRental(ctx, rentalInput(models.PayLater))
	require.NoError(t, err)
	_, err = f.svc.RetryPayment(ctx, payLater.Rental.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

	f.gateway.On("Initiate", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrGatewayUnavailable).Once()
	online, err := f.svc.CreateRental(ctx, rentalInput(models.PayOnline))
	require.NoError(t, err)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)
	_, err = f.svc.UpdateRentalStatus(ctx, online.Rental.ID, models.RentalCancelled, "changed plans")
	require.NoError(t, err)

	_, err = f.svc.RetryPayment(ctx, online.Rental.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)

	_, err = f.svc.RetryPayment(ctx, 999)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestOrderService_UpdateRentalStatus(t *testing.T) {
	ctx := context.Background()

	newOnline := func(t *testing.T, f *fixture, pidx string) *BookingResult {
		t.Helper()
		f.gateway.On("Initiate", mock.Anything, mock.Anything).
			Return(&payment.InitiateResponse{PaymentID: pidx, RedirectURL: "https://pay.example/" + pidx}, nil).Once()
		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayOnline))
		require.NoError(t, err)
		return res
	}

	t.Run("cancel cascades to pending transaction and notifies renter", func(t *testing.T) {
		f := newFixture()
		res := newOnline(t, f, "P1")
		f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
			return n.Kind == models.NotifyRentalCancelled && n.To == "ram@example.com"
		})).Return(nil).Once()

		details, err := f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalCancelled, "no longer needed")
		require.NoError(t, err)
		assert.Equal(t, models.RentalCancelled, details.Rental.Status)
		assert.Equal(t, models.TransactionCancelled, details.Transaction.Status)

		tx, ok := f.store.transactionOf(res.Rental.ID)
		require.True(t, ok)
		assert.Equal(t, models.TransactionCancelled, tx.Status)
		f.notifier.AssertExpectations(t)
	})

	t.Run("online rental cannot be activated without payment", func(t *testing.T) {
		f := newFixture()
		res := newOnline(t, f, "P1")

		_, err := f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalActive, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
		assert.Equal(t, models.RentalPending, f.store.rental(res.Rental.ID).Status)
	})

	t.Run("terminal rental cannot be cancelled", func(t *testing.T) {
		f := newFixture()
		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayLater))
		require.NoError(t, err)
		_, err = f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalActive, "")
		require.NoError(t, err)
		_, err = f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalCompletedLate, "returned a day late")
		require.NoError(t, err)

		_, err = f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalCancelled, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
		_, err = f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalPending, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
		assert.Equal(t, models.RentalCompletedLate, f.store.rental(res.Rental.ID).Status)
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("completing a paid rental leaves the transaction paid", func(t *testing.T) {
		f := newFixture()
		res := newOnline(t, f, "P1")
		f.gateway.On("Lookup", mock.Anything, "P1").
			Return(&payment.LookupResponse{PaymentID: "P1", Status: payment.StatusCompleted, Amount: decimal.NewFromInt(1000)}, nil)
		f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.VerifyPayment(ctx, "P1")
		require.NoError(t, err)

		details, err := f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalCompleted, "")
		require.NoError(t, err)
		assert.Equal(t, models.RentalCompleted, details.Rental.Status)
		assert.Equal(t, models.TransactionPaid, details.Transaction.Status)
	})

	t.Run("unknown rental and status", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.UpdateRentalStatus(ctx, 999, models.RentalCancelled, "")
		assert.ErrorIs(t, err, pkgerrors.ErrRentalNotFound)

		_, err = f.svc.UpdateRentalStatus(ctx, 1, models.RentalStatus("archived"), "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("notification failure does not undo the cancellation", func(t *testing.T) {
		f := newFixture()
		res, err := f.svc.CreateRental(ctx, rentalInput(models.PayLater))
		require.NoError(t, err)
		f.notifier.On("Notify", mock.Anything, mock.Anything).Return(pkgerrors.ErrNotifierUnavailable).Once()

		details, err := f.svc.UpdateRentalStatus(ctx, res.Rental.ID, models.RentalCancelled, "")
		require.NoError(t, err)
		assert.Equal(t, models.RentalCancelled, details.Rental.Status)
		assert.Equal(t, models.RentalCancelled, f.store.rental(res.Rental.ID).Status)
	})
}

func TestOrderService_GetAndListRentals(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.svc.CreateRental(ctx, rentalInput(models.PayLater))
	require.NoError(t, err)

	details, err := f.svc.GetRental(ctx, res.Rental.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Rental.ID, details.Rental.ID)
	assert.Nil(t, details.Transaction)

	rentals, err := f.svc.ListRentals(ctx, renterID)
	require.NoError(t, err)
	assert.Len(t, rentals, 1)

	_, err = f.svc.GetRental(ctx, 999)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	_, err = f.svc.ListRentals(ctx, 0)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}
