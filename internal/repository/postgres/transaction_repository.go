package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

const transactionTracer = "transaction-repository"

const (
	transactionColumns = `id, rental_id, external_payment_id, amount, status, created_at, updated_at`

	uniqueViolation    = "23505"
	rentalIDConstraint = "transactions_rental_id_key"
)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (id int32, err error) {
	ctx, done := instrument(ctx, transactionTracer, "CreateTransaction")
	defer done(&err)

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return 0, err
	}
	if tx.ExternalPaymentID == "" {
		err = fmt.Errorf("%w: external payment id is required", pkgerrors.ErrInvalidInput)
		return 0, err
	}
	if tx.Status != models.TransactionPending {
		err = fmt.Errorf("%w: transaction must be created pending", pkgerrors.ErrInvalidInput)
		slog.Error("invalid transaction status", "method", "Create", "status", tx.Status, "error", err)
		return 0, err
	}
	if !tx.Amount.IsPositive() {
		err = fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
		slog.Error("amount must be positive", "method", "Create", "amount", tx.Amount.String(), "error", err)
		return 0, err
	}

	query := `INSERT INTO transactions (rental_id, external_payment_id, amount, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query, tx.RentalID, tx.ExternalPaymentID, tx.Amount, tx.Status).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if pqErr.Constraint == rentalIDConstraint {
				err = pkgerrors.ErrPaymentAlreadyInitiated
			} else {
				err = pkgerrors.ErrDuplicatePaymentID
			}
			slog.Warn("transaction already exists", "method", "Create", "rental_id", tx.RentalID, "pidx", tx.ExternalPaymentID, "constraint", pqErr.Constraint)
			return 0, err
		}
		slog.Error("failed to create transaction", "method", "Create", "rental_id", tx.RentalID, "pidx", tx.ExternalPaymentID, "error", err)
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}

	slog.Info("transaction created", "method", "Create", "id", tx.ID, "rental_id", tx.RentalID, "pidx", tx.ExternalPaymentID)
	return tx.ID, nil
}

func (r *PostgresTransactionRepository) GetByExternalID(ctx context.Context, externalPaymentID string) (tx *models.Transaction, err error) {
	ctx, done := instrument(ctx, transactionTracer, "GetTransactionByExternalID", attribute.String("pidx", externalPaymentID))
	defer done(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE external_payment_id = $1`
	tx, err = scanTransaction(r.db.QueryRowContext(ctx, query, externalPaymentID))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrTransactionNotFound
		slog.Warn("transaction not found", "method", "GetByExternalID", "pidx", externalPaymentID)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get transaction", "method", "GetByExternalID", "pidx", externalPaymentID, "error", err)
		return nil, fmt.Errorf("failed to get transaction by external id: %w", err)
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) GetByRentalID(ctx context.Context, rentalID int32) (tx *models.Transaction, err error) {
	ctx, done := instrument(ctx, transactionTracer, "GetTransactionByRentalID", attribute.Int("rental_id", int(rentalID)))
	defer done(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE rental_id = $1`
	tx, err = scanTransaction(r.db.QueryRowContext(ctx, query, rentalID))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrTransactionNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get transaction", "method", "GetByRentalID", "rental_id", rentalID, "error", err)
		return nil, fmt.Errorf("failed to get transaction by rental id: %w", err)
	}
	return tx, nil
}

// ClaimPendingBefore rotates through stale pending transactions: rows that
// were never checked come first, then the ones checked longest ago.
func (r *PostgresTransactionRepository) ClaimPendingBefore(ctx context.Context, before time.Time, limit int) (txs []models.Transaction, err error) {
	ctx, done := instrument(ctx, transactionTracer, "ClaimPendingTransactions")
	defer done(&err)

	query := `UPDATE transactions SET checked_at = NOW()
		WHERE id IN (
			SELECT id FROM transactions
			WHERE status = 'pending' AND created_at < $1
			ORDER BY checked_at NULLS FIRST, created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED)
		RETURNING ` + transactionColumns
	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		slog.Error("failed to list pending transactions", "method", "ClaimPendingBefore", "error", err)
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer rows.Close()

	txs = []models.Transaction{}
	for rows.Next() {
		var tx *models.Transaction
		tx, err = scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// Settle applies the paired transition in one database transaction. The
// rental row is locked first, the same order rental cancellation uses, so the
// two writers queue instead of deadlocking. The status = 'pending' predicate
// on the transaction UPDATE is the compare-and-swap: a concurrent caller
// waits on the rental lock, then updates nothing.
func (r *PostgresTransactionRepository) Settle(ctx context.Context, externalPaymentID string, to models.TransactionStatus, rentalTo models.RentalStatus) (tx *models.Transaction, err error) {
	ctx, done := instrument(ctx, transactionTracer, "SettleTransaction",
		attribute.String("pidx", externalPaymentID),
		attribute.String("to", string(to)),
	)
	defer done(&err)

	if !models.TransactionPending.CanTransitionTo(to) {
		err = fmt.Errorf("%w: transaction pending -> %s", pkgerrors.ErrInvalidTransition, to)
		return nil, err
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Settle", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var lockedRentalID int32
	err = dbTx.QueryRowContext(ctx,
		`SELECT id FROM rentals
		WHERE id = (SELECT rental_id FROM transactions WHERE external_payment_id = $1)
		FOR UPDATE`,
		externalPaymentID,
	).Scan(&lockedRentalID)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = rollback(dbTx, "Settle", pkgerrors.ErrTransactionNotFound)
		return nil, err
	}
	if err != nil {
		err = rollback(dbTx, "Settle", fmt.Errorf("failed to lock rental: %w", err))
		return nil, err
	}

	settled := models.Transaction{ExternalPaymentID: externalPaymentID, Status: to}
	err = dbTx.QueryRowContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = NOW()
		WHERE external_payment_id = $2 AND status = 'pending'
		RETURNING id, rental_id, amount, created_at, updated_at`,
		to, externalPaymentID,
	).Scan(&settled.ID, &settled.RentalID, &settled.Amount, &settled.CreatedAt, &settled.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = rollback(dbTx, "Settle", fmt.Errorf("%w: transaction %s is no longer pending", pkgerrors.ErrConflict, externalPaymentID))
		return nil, err
	}
	if err != nil {
		err = rollback(dbTx, "Settle", fmt.Errorf("failed to update transaction status: %w", err))
		return nil, err
	}

	res, err := dbTx.ExecContext(ctx,
		`UPDATE rentals SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'pending'`,
		rentalTo, settled.RentalID)
	if err != nil {
		err = rollback(dbTx, "Settle", fmt.Errorf("failed to update rental status: %w", err))
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = rollback(dbTx, "Settle", fmt.Errorf("%w: rental %d is not pending", pkgerrors.ErrInvalidTransition, settled.RentalID))
		return nil, err
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Settle", "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("transaction settled", "method", "Settle", "pidx", externalPaymentID, "rental_id", settled.RentalID, "status", to, "rental_status", rentalTo)
	return &settled, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.ID, &tx.RentalID, &tx.ExternalPaymentID, &tx.Amount, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
