package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/auth"
	service "github.com/honeynil/RentalOrderService/internal/services"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
)

type Handler struct {
	service service.OrderService
}

func NewHandler(s service.OrderService) *Handler {
	return &Handler{service: s}
}

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	body := envelope{Error: err.Error()}
	var verr *validationError
	if errors.As(err, &verr) {
		body.Details = verr.fields
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrInvalidTransition),
		errors.Is(err, pkgerrors.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrConflict),
		errors.Is(err, pkgerrors.ErrPaymentAlreadyInitiated),
		errors.Is(err, pkgerrors.ErrDuplicatePaymentID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RegisterPublicRoutes mounts the endpoints the payment gateway and the
// customer's browser reach without a bearer token.
func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/payments/verify", h.VerifyPayment).Methods("POST")
	r.HandleFunc("/payments/callback", h.PaymentCallback).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/rentals", h.CreateRental).Methods("POST")
	r.HandleFunc("/rentals", h.ListRentals).Methods("GET")
	r.HandleFunc("/rentals/{id:[0-9]+}", h.GetRental).Methods("GET")
	r.HandleFunc("/rentals/{id:[0-9]+}/status", h.UpdateRentalStatus).Methods("PATCH", "PUT")
	r.HandleFunc("/rentals/{id:[0-9]+}/payment", h.RetryPayment).Methods("POST")

	r.HandleFunc("/appointments", h.CreateAppointment).Methods("POST")
	r.HandleFunc("/appointments", h.ListAppointments).Methods("GET")
	r.HandleFunc("/appointments/{id:[0-9]+}", h.GetAppointment).Methods("GET")
	r.HandleFunc("/appointments/{id:[0-9]+}/status", h.UpdateAppointmentStatus).Methods("PATCH", "PUT")
}

func pathID(r *http.Request) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil || id <= 0 {
		return 0, pkgerrors.ErrInvalidInput
	}
	return int32(id), nil
}

// queryID reads an optional positive id from the query string, falling back
// to the authenticated caller.
func queryID(r *http.Request, key string) (int32, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		if id, ok := auth.UserIDFromContext(r.Context()); ok {
			return id, nil
		}
		return 0, pkgerrors.ErrInvalidInput
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, pkgerrors.ErrInvalidInput
	}
	return int32(id), nil
}

// actorOr returns id when set, otherwise the authenticated caller.
func actorOr(r *http.Request, id int32) int32 {
	if id > 0 {
		return id
	}
	actor, _ := auth.UserIDFromContext(r.Context())
	return actor
}
