package handler

import (
	"net/http"
	"time"

	"github.com/honeynil/RentalOrderService/internal/models"
	service "github.com/honeynil/RentalOrderService/internal/services"
)

const appointmentDateLayout = "2006-01-02"

type createAppointmentRequest struct {
	BuyerID     int32  `json:"buyer_id" validate:"gte=0"`
	VehicleID   int32  `json:"vehicle_id" validate:"required,gt=0"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,max=32"`
	Location    string `json:"location" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

type appointmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Role   string `json:"role"`
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := time.Parse(appointmentDateLayout, req.Date)
	if err != nil {
		h.writeError(w, r, formatValidationErrors(err))
		return
	}

	appt, err := h.service.CreateAppointment(r.Context(), service.CreateAppointmentInput{
		BuyerID:     actorOr(r, req.BuyerID),
		VehicleID:   req.VehicleID,
		Date:        date,
		Time:        req.Time,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	appt, err := h.service.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "user_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	appts, err := h.service.ListAppointments(r.Context(), userID, models.Role(r.URL.Query().Get("role")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if appts == nil {
		appts = []models.SaleAppointment{}
	}
	h.writeJSON(w, http.StatusOK, appts)
}

// UpdateAppointmentStatus requires the acting party's role; an unknown role is
// rejected by the service before anything changes.
func (h *Handler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req appointmentStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appt, err := h.service.UpdateAppointmentStatus(r.Context(), id,
		models.AppointmentStatus(req.Status), models.Role(req.Role), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}
