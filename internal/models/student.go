package models

import "time"

// EnrollmentStatus represents a student's standing after enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusGraduated EnrollmentStatus = "GRADUATED"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// LMSSyncStatus tracks provisioning of the learning-platform account.
type LMSSyncStatus string

// LMS sync states stored on the student record.
const (
	LMSSyncPending LMSSyncStatus = "PENDING"
	LMSSyncDone    LMSSyncStatus = "SYNCED"
	LMSSyncFailed  LMSSyncStatus = "FAILED"
)

// Student is created exactly once per application upon successful enrollment.
// ApplicationID and InstitutionalEmail carry uniqueness constraints.
type Student struct {
	ID                 string           `db:"id" json:"id"`
	ApplicationID      string           `db:"application_id" json:"application_id"`
	StudentNo          string           `db:"student_no" json:"student_no"`
	InstitutionalEmail string           `db:"institutional_email" json:"institutional_email"`
	EnrollmentStatus   EnrollmentStatus `db:"enrollment_status" json:"enrollment_status"`
	ProgramID          string           `db:"program_id" json:"program_id"`
	StartDate          time.Time        `db:"start_date" json:"start_date"`
	ExpectedGradDate   time.Time        `db:"expected_graduation_date" json:"expected_graduation_date"`
	LMSSyncToken       *string          `db:"lms_sync_token" json:"lms_sync_token,omitempty"`
	LMSSyncStatus      LMSSyncStatus    `db:"lms_sync_status" json:"lms_sync_status"`
	LMSSyncedAt        *time.Time       `db:"lms_synced_at" json:"lms_synced_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}
