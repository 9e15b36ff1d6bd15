package models

import "time"

// OfferStatus represents the applicant's response to an offer.
type OfferStatus string

// Possible offer statuses. A response is one-time and non-reversible.
const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusRejected OfferStatus = "REJECTED"
)

// Offer is the admission decision for an application. At most one live offer
// exists per application; once responded to it becomes immutable.
type Offer struct {
	ID                 string      `db:"id" json:"id"`
	ApplicationID      string      `db:"application_id" json:"application_id"`
	TuitionAmount      int64       `db:"tuition_amount" json:"tuition_amount"`
	DiscountPercent    int         `db:"discount_percent" json:"discount_percent"`
	AmountDue          int64       `db:"amount_due" json:"amount_due"`
	PaymentDeadline    time.Time   `db:"payment_deadline" json:"payment_deadline"`
	Status             OfferStatus `db:"status" json:"status"`
	RespondedAt        *time.Time  `db:"responded_at" json:"responded_at,omitempty"`
	OfferLetterURL     *string     `db:"offer_letter_url" json:"offer_letter_url,omitempty"`
	AdmissionLetterURL *string     `db:"admission_letter_url" json:"admission_letter_url,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}
