package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/honeynil/RentalOrderService/internal/infrastructure/observability"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/redis"
	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/shopspring/decimal"
)

// VerificationResult is the authoritative gateway status of a payment and,
// once it is completed, the local records it settled.
type VerificationResult struct {
	PaymentID      string              `json:"pidx"`
	GatewayStatus  string              `json:"gateway_status"`
	Amount         decimal.Decimal     `json:"amount"`
	Verified       bool                `json:"verified"`
	AlreadyApplied bool                `json:"already_applied"`
	Transaction    *models.Transaction `json:"transaction,omitempty"`
	Rental         *models.Rental      `json:"rental,omitempty"`
}

// VerifyPayment reconciles a payment with the gateway. Callback payloads are
// never trusted: the gateway lookup is the only input that can settle a
// transaction, and settling is a compare-and-swap on the pending status so
// concurrent or repeated deliveries apply it once.
func (s *orderService) VerifyPayment(ctx context.Context, pidx string) (*VerificationResult, error) {
	ctx, span := startSpan(ctx, "VerifyPayment")
	defer span.End()

	if pidx == "" {
		err := fmt.Errorf("%w: pidx is required", pkgerrors.ErrInvalidInput)
		failSpan(span, err, "missing pidx")
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	lookup, err := s.gateway.Lookup(lookupCtx, pidx)
	cancel()
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrNotFound) {
			observability.PaymentVerifications.WithLabelValues("not_found").Inc()
			failSpan(span, err, "unknown payment")
			return nil, fmt.Errorf("payment %s: %w", pidx, pkgerrors.ErrTransactionNotFound)
		}
		observability.PaymentVerifications.WithLabelValues("gateway_error").Inc()
		failSpan(span, err, "lookup failed")
		slog.Error("payment lookup failed, nothing changed", "pidx", pidx, "error", err)
		if !stderrors.Is(err, pkgerrors.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	result := &VerificationResult{
		PaymentID:     pidx,
		GatewayStatus: lookup.Status,
		Amount:        lookup.Amount,
	}
	if !lookup.Completed() {
		observability.PaymentVerifications.WithLabelValues("not_completed").Inc()
		slog.Info("payment not completed", "pidx", pidx, "gateway_status", lookup.Status)
		return result, nil
	}

	if cached := s.cachedResult(ctx, pidx); cached != nil {
		observability.PaymentVerifications.WithLabelValues("already_applied").Inc()
		return cached, nil
	}

	tx, err := s.transactions.GetByExternalID(ctx, pidx)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrNotFound) {
			observability.PaymentVerifications.WithLabelValues("not_found").Inc()
			slog.Warn("completed payment has no transaction", "pidx", pidx)
		}
		failSpan(span, err, "transaction lookup failed")
		return nil, err
	}

	if !lookup.Amount.Equal(tx.Amount) {
		err = fmt.Errorf("%w: gateway reports %s, transaction %s", pkgerrors.ErrAmountMismatch, lookup.Amount, tx.Amount)
		observability.PaymentVerifications.WithLabelValues("amount_mismatch").Inc()
		failSpan(span, err, "amount mismatch")
		slog.Error("payment amount mismatch, nothing changed", "pidx", pidx, "gateway_amount", lookup.Amount, "amount", tx.Amount)
		return nil, err
	}

	switch tx.Status {
	case models.TransactionPaid:
		return s.alreadyApplied(ctx, result, tx)
	case models.TransactionCancelled:
		err = fmt.Errorf("%w: transaction %s was cancelled before payment completed", pkgerrors.ErrInvalidTransition, pidx)
		observability.PaymentVerifications.WithLabelValues("cancelled").Inc()
		failSpan(span, err, "transaction cancelled")
		slog.Error("payment completed for cancelled transaction, refund required", "pidx", pidx, "rental_id", tx.RentalID)
		return nil, err
	}

	settled, err := s.transactions.Settle(ctx, pidx, models.TransactionPaid, models.RentalActive)
	if stderrors.Is(err, pkgerrors.ErrConflict) {
		// Another delivery won the compare-and-swap.
		current, lookupErr := s.transactions.GetByExternalID(ctx, pidx)
		if lookupErr != nil {
			failSpan(span, lookupErr, "transaction reload failed")
			return nil, lookupErr
		}
		if current.Status == models.TransactionPaid {
			return s.alreadyApplied(ctx, result, current)
		}
		failSpan(span, err, "transaction settled elsewhere")
		return nil, fmt.Errorf("%w: transaction %s is %s", pkgerrors.ErrInvalidTransition, pidx, current.Status)
	}
	if err != nil {
		observability.PaymentVerifications.WithLabelValues("error").Inc()
		failSpan(span, err, "settle failed")
		slog.Error("failed to settle payment", "pidx", pidx, "error", err)
		return nil, err
	}

	observability.PaymentVerifications.WithLabelValues("applied").Inc()
	s.recordTransition(ctx, "transaction", settled.ID, string(models.TransactionPending), string(models.TransactionPaid), "payment verified")
	s.recordTransition(ctx, "rental", settled.RentalID, string(models.RentalPending), string(models.RentalActive), "payment verified")
	slog.Info("payment verified", "pidx", pidx, "rental_id", settled.RentalID)

	result.Verified = true
	result.Transaction = settled
	rental, err := s.rentals.GetByID(ctx, settled.RentalID)
	if err != nil {
		slog.Warn("failed to reload rental after settle", "rental_id", settled.RentalID, "error", err)
	} else {
		result.Rental = rental
		subject, body := rentalActivatedMessage(rental)
		s.notify(ctx, rental.RenterID, models.NotifyRentalActivated, subject, body)
	}

	s.cacheResult(ctx, result)
	return result, nil
}

func (s *orderService) alreadyApplied(ctx context.Context, result *VerificationResult, tx *models.Transaction) (*VerificationResult, error) {
	observability.PaymentVerifications.WithLabelValues("already_applied").Inc()
	slog.Info("payment already applied", "pidx", tx.ExternalPaymentID, "rental_id", tx.RentalID)

	result.Verified = true
	result.AlreadyApplied = true
	result.Transaction = tx
	if rental, err := s.rentals.GetByID(ctx, tx.RentalID); err == nil {
		result.Rental = rental
	}
	s.cacheResult(ctx, result)
	return result, nil
}

func (s *orderService) cachedResult(ctx context.Context, pidx string) *VerificationResult {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, redis.VerificationKey(pidx))
	if err != nil {
		if !stderrors.Is(err, redis.ErrKeyNotFound) {
			slog.Warn("verification cache read failed", "pidx", pidx, "error", err)
		}
		return nil
	}
	var cached VerificationResult
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		slog.Warn("corrupt verification cache entry", "pidx", pidx, "error", err)
		return nil
	}
	cached.AlreadyApplied = true
	return &cached
}

func (s *orderService) cacheResult(ctx context.Context, result *VerificationResult) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		slog.Warn("failed to marshal verification result", "pidx", result.PaymentID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, redis.VerificationKey(result.PaymentID), string(raw), s.opts.ResultTTL); err != nil {
		slog.Warn("failed to cache verification result", "pidx", result.PaymentID, "error", err)
	}
}

// ReconcileReport summarises one sweep over stale pending transactions.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// ReconcileStale re-verifies transactions that stayed pending longer than
// olderThan, for payments whose gateway redirect never reached us.
func (s *orderService) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (*ReconcileReport, error) {
	ctx, span := startSpan(ctx, "ReconcileStale")
	defer span.End()

	stale, err := s.transactions.ClaimPendingBefore(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		failSpan(span, err, "list pending failed")
		return nil, err
	}

	report := &ReconcileReport{}
	for _, tx := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		res, err := s.VerifyPayment(ctx, tx.ExternalPaymentID)
		switch {
		case err != nil:
			report.Failed++
			slog.Warn("stale payment verification failed", "pidx", tx.ExternalPaymentID, "rental_id", tx.RentalID, "error", err)
		case res.Verified:
			report.Settled++
		default:
			report.Pending++
		}
	}

	slog.Info("stale payment sweep finished",
		"checked", report.Checked,
		"settled", report.Settled,
		"pending", report.Pending,
		"failed", report.Failed)
	return report, nil
}
