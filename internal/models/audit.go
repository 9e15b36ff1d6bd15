package models

import "time"

// AuditAction constants represent state-changing actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionApplicationSubmt  = "APPLICATION_SUBMIT"
	AuditActionApplicationReview = "APPLICATION_REVIEW"
	AuditActionApplicationAdmit  = "APPLICATION_ADMIT"
	AuditActionOfferRespond      = "OFFER_RESPOND"
	AuditActionPaymentSubmit     = "PAYMENT_SUBMIT"
	AuditActionPaymentVerify     = "PAYMENT_VERIFY"
	AuditActionEnroll            = "ENROLL"
	AuditActionLetterIssue       = "LETTER_ISSUE"
	AuditActionProvisionLMS      = "PROVISION_LMS"
	AuditActionProvisionAsset    = "PROVISION_IT_ASSET"
)

// AuditLog represents an append-only audit trail record. Rows are written
// only for state-changing successes and are never mutated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
