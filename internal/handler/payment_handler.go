package handler

import (
	"log/slog"
	"net/http"
)

type verifyPaymentRequest struct {
	PaymentID string `json:"pidx" validate:"required,max=128"`
}

// VerifyPayment is the client poll / server-to-server entry point.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), req.PaymentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// PaymentCallback receives the gateway's browser redirect. The status in the
// query string is only logged; the outcome comes from a fresh lookup.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pidx := q.Get("pidx")
	slog.InfoContext(r.Context(), "payment callback received",
		"pidx", pidx,
		"reported_status", q.Get("status"),
		"purchase_order_id", q.Get("purchase_order_id"))

	result, err := h.service.VerifyPayment(r.Context(), pidx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
