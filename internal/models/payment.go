package models

import "time"

// PaymentStatus represents the verification state of a tuition remittance.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentStatusPendingVerification PaymentStatus = "PENDING_VERIFICATION"
	PaymentStatusCompleted           PaymentStatus = "COMPLETED"
	PaymentStatusFailed              PaymentStatus = "FAILED"
)

// Payment is a tuition remittance tied to an offer. One COMPLETED payment
// unlocks enrollment and admission-letter issuance.
type Payment struct {
	ID             string        `db:"id" json:"id"`
	OfferID        string        `db:"offer_id" json:"offer_id"`
	Amount         int64         `db:"amount" json:"amount"`
	Status         PaymentStatus `db:"status" json:"status"`
	TransactionRef string        `db:"transaction_ref" json:"transaction_ref"`
	Method         string        `db:"method" json:"method"`
	VerifiedAt     *time.Time    `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}
