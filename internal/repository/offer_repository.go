package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

// OfferRepository handles persistence of admission offers.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository constructs the repository.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `id, application_id, tuition_amount, discount_percent, amount_due, payment_deadline,
        status, responded_at, offer_letter_url, admission_letter_url, created_at, updated_at`

// FindByID returns an offer by its ID.
func (r *OfferRepository) FindByID(ctx context.Context, id string) (*models.Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE id = $1`, offerColumns)
	var offer models.Offer
	if err := r.db.GetContext(ctx, &offer, query, id); err != nil {
		return nil, err
	}
	return &offer, nil
}

// FindByApplicationID returns the live offer for an application.
func (r *OfferRepository) FindByApplicationID(ctx context.Context, applicationID string) (*models.Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE application_id = $1`, offerColumns)
	var offer models.Offer
	if err := r.db.GetContext(ctx, &offer, query, applicationID); err != nil {
		return nil, err
	}
	return &offer, nil
}

// Create persists a new offer record.
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now
	}
	offer.UpdatedAt = now
	if offer.Status == "" {
		offer.Status = models.OfferStatusPending
	}
	const query = `INSERT INTO offers (id, application_id, tuition_amount, discount_percent, amount_due,
        payment_deadline, status, responded_at, offer_letter_url, admission_letter_url, created_at, updated_at)
        VALUES (:id, :application_id, :tuition_amount, :discount_percent, :amount_due,
        :payment_deadline, :status, :responded_at, :offer_letter_url, :admission_letter_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offer); err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// RespondIfPending records the applicant's decision only when the offer is
// still PENDING. It returns the number of rows affected; zero means a
// response already landed and the caller must surface the conflict.
func (r *OfferRepository) RespondIfPending(ctx context.Context, id string, status models.OfferStatus, respondedAt time.Time) (int64, error) {
	const query = `UPDATE offers SET status = $2, responded_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, respondedAt, models.OfferStatusPending)
	if err != nil {
		return 0, fmt.Errorf("respond to offer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("respond to offer: %w", err)
	}
	return affected, nil
}

// SetLetterURL records the stored artifact location for the given letter type.
func (r *OfferRepository) SetLetterURL(ctx context.Context, id, column, url string) error {
	var query string
	switch column {
	case "offer_letter_url":
		query = `UPDATE offers SET offer_letter_url = $2, updated_at = $3 WHERE id = $1`
	case "admission_letter_url":
		query = `UPDATE offers SET admission_letter_url = $2, updated_at = $3 WHERE id = $1`
	default:
		return fmt.Errorf("unknown letter column %q", column)
	}
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("set letter url: %w", err)
	}
	return nil
}
