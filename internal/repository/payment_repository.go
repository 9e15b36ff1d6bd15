package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

// PaymentRepository handles persistence of tuition payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, offer_id, amount, status, transaction_ref, method, verified_at, created_at, updated_at`

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindCompletedByOfferID returns the completed payment for an offer, or nil
// when none exists. This is the single gating query for enrollment and
// admission-letter issuance.
func (r *PaymentRepository) FindCompletedByOfferID(ctx context.Context, offerID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE offer_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, offerID, models.PaymentStatusCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find completed payment: %w", err)
	}
	return &payment, nil
}

// ListByOfferID returns all payments recorded against an offer.
func (r *PaymentRepository) ListByOfferID(ctx context.Context, offerID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE offer_id = $1 ORDER BY created_at DESC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, offerID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// Create persists a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPendingVerification
	}
	const query = `INSERT INTO payments (id, offer_id, amount, status, transaction_ref, method, verified_at, created_at, updated_at)
        VALUES (:id, :offer_id, :amount, :status, :transaction_ref, :method, :verified_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// CompleteIfPending marks a payment COMPLETED only while it still awaits
// verification, returning the number of rows affected.
func (r *PaymentRepository) CompleteIfPending(ctx context.Context, id string, verifiedAt time.Time) (int64, error) {
	const query = `UPDATE payments SET status = $2, verified_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.PaymentStatusCompleted, verifiedAt, models.PaymentStatusPendingVerification)
	if err != nil {
		return 0, fmt.Errorf("complete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete payment: %w", err)
	}
	return affected, nil
}

// MarkVerified stamps verified_at on an already-completed payment after
// enrollment finishes. Best-effort bookkeeping, not a gate.
func (r *PaymentRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `UPDATE payments SET verified_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, verifiedAt); err != nil {
		return fmt.Errorf("mark payment verified: %w", err)
	}
	return nil
}
