// Package payment is the client of the external e-payment gateway. The
// gateway issues a pidx per payment attempt and is the source of truth for
// its status; callers re-verify through Lookup instead of trusting redirects.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/honeynil/RentalOrderService/internal/config"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Lookup statuses reported by the gateway.
const (
	StatusCompleted    = "Completed"
	StatusPending      = "Pending"
	StatusInitiated    = "Initiated"
	StatusRefunded     = "Refunded"
	StatusExpired      = "Expired"
	StatusUserCanceled = "User canceled"
)

// Amounts travel over the wire in the smallest currency unit.
var minorUnits = decimal.NewFromInt(100)

type InitiateRequest struct {
	Amount            decimal.Decimal
	PurchaseOrderID   string
	PurchaseOrderName string
	CustomerName      string
	CustomerEmail     string
}

type InitiateResponse struct {
	PaymentID   string    `json:"pidx"`
	RedirectURL string    `json:"payment_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type LookupResponse struct {
	PaymentID     string          `json:"pidx"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// Completed reports whether the gateway considers the payment settled.
func (r *LookupResponse) Completed() bool {
	return strings.EqualFold(r.Status, StatusCompleted)
}

type Client struct {
	baseURL    string
	secretKey  string
	returnURL  string
	websiteURL string
	httpClient *http.Client
}

func NewClient(cfg config.PaymentConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		returnURL:  cfg.ReturnURL,
		websiteURL: cfg.WebsiteURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type initiatePayload struct {
	ReturnURL         string        `json:"return_url"`
	WebsiteURL        string        `json:"website_url"`
	Amount            int64         `json:"amount"`
	PurchaseOrderID   string        `json:"purchase_order_id"`
	PurchaseOrderName string        `json:"purchase_order_name"`
	CustomerInfo      *customerInfo `json:"customer_info,omitempty"`
}

type customerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Initiate registers a payment attempt and returns the gateway's pidx and the
// URL the customer must be redirected to.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount %s is not a whole number of paisa", pkgerrors.ErrInvalidInput, req.Amount)
	}
	payload := initiatePayload{
		ReturnURL:         c.returnURL,
		WebsiteURL:        c.websiteURL,
		Amount:            req.Amount.Mul(minorUnits).Round(0).IntPart(),
		PurchaseOrderID:   req.PurchaseOrderID,
		PurchaseOrderName: req.PurchaseOrderName,
	}
	if req.CustomerName != "" || req.CustomerEmail != "" {
		payload.CustomerInfo = &customerInfo{Name: req.CustomerName, Email: req.CustomerEmail}
	}

	var resp InitiateResponse
	if err := c.post(ctx, "/epayment/initiate/", payload, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentID == "" || resp.RedirectURL == "" {
		return nil, fmt.Errorf("%w: initiate response missing pidx or payment_url", pkgerrors.ErrGatewayUnavailable)
	}

	slog.Info("payment initiated", "pidx", resp.PaymentID, "purchase_order_id", req.PurchaseOrderID)
	return &resp, nil
}

type lookupWire struct {
	PaymentID     string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// Lookup fetches the authoritative status of a payment attempt.
func (c *Client) Lookup(ctx context.Context, pidx string) (*LookupResponse, error) {
	var wire lookupWire
	if err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &wire); err != nil {
		return nil, err
	}
	return &LookupResponse{
		PaymentID:     wire.PaymentID,
		Status:        wire.Status,
		Amount:        decimal.NewFromInt(wire.TotalAmount).Div(minorUnits),
		TransactionID: wire.TransactionID,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("payment gateway request failed", "path", path, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", pkgerrors.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("payment %w", pkgerrors.ErrNotFound)
	case resp.StatusCode >= 400:
		slog.Error("payment gateway returned error", "path", path, "status", resp.StatusCode, "body", string(data))
		return fmt.Errorf("%w: status %d", pkgerrors.ErrGatewayUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	return nil
}
