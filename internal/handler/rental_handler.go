package handler

import (
	"net/http"
	"time"

	"github.com/honeynil/RentalOrderService/internal/models"
	service "github.com/honeynil/RentalOrderService/internal/services"
	"github.com/shopspring/decimal"
)

type createRentalRequest struct {
	RenterID        int32           `json:"renter_id" validate:"gte=0"`
	VehicleID       int32           `json:"vehicle_id" validate:"required,gt=0"`
	PickupLocation  string          `json:"pickup_location" validate:"required,max=255"`
	ReturnLocation  string          `json:"return_location" validate:"required,max=255"`
	PickupAt        time.Time       `json:"pickup_at" validate:"required"`
	ReturnAt        time.Time       `json:"return_at" validate:"required,gtfield=PickupAt"`
	RentalType      string          `json:"rental_type" validate:"required,oneof=hour day week month"`
	DriveOption     string          `json:"drive_option" validate:"required,oneof=self-drive hire-driver"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=pay-later online"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RentalDuration  int32           `json:"rental_duration" validate:"gte=0"`
	LicenseImageRef string          `json:"license_image_ref" validate:"max=512"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	var req createRentalRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.CreateRental(r.Context(), service.CreateRentalInput{
		RenterID:        actorOr(r, req.RenterID),
		VehicleID:       req.VehicleID,
		PickupLocation:  req.PickupLocation,
		ReturnLocation:  req.ReturnLocation,
		PickupAt:        req.PickupAt,
		ReturnAt:        req.ReturnAt,
		RentalType:      models.RentalType(req.RentalType),
		DriveOption:     models.DriveOption(req.DriveOption),
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
		TotalAmount:     req.TotalAmount,
		RentalDuration:  req.RentalDuration,
		LicenseImageRef: req.LicenseImageRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	details, err := h.service.GetRental(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	renterID, err := queryID(r, "renter_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rentals, err := h.service.ListRentals(r.Context(), renterID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []models.Rental{}
	}
	h.writeJSON(w, http.StatusOK, rentals)
}

func (h *Handler) UpdateRentalStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	details, err := h.service.UpdateRentalStatus(r.Context(), id, models.RentalStatus(req.Status), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.RetryPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}
