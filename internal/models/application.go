package models

import "time"

// ApplicationStatus represents the lifecycle of an admission application.
type ApplicationStatus string

// Application lifecycle states. OFFER_DECLINED and ENROLLED are terminal.
const (
	ApplicationStatusSubmitted        ApplicationStatus = "SUBMITTED"
	ApplicationStatusUnderReview      ApplicationStatus = "UNDER_REVIEW"
	ApplicationStatusAdmitted         ApplicationStatus = "ADMITTED"
	ApplicationStatusOfferAccepted    ApplicationStatus = "OFFER_ACCEPTED"
	ApplicationStatusOfferDeclined    ApplicationStatus = "OFFER_DECLINED"
	ApplicationStatusPaymentSubmitted ApplicationStatus = "PAYMENT_SUBMITTED"
	ApplicationStatusEnrolled         ApplicationStatus = "ENROLLED"
)

// applicationTransitions is the single authority on legal status moves.
// Every workflow entry point consults it; regression is never listed.
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusSubmitted:     {ApplicationStatusUnderReview},
	ApplicationStatusUnderReview:   {ApplicationStatusAdmitted},
	ApplicationStatusAdmitted:      {ApplicationStatusOfferAccepted, ApplicationStatusOfferDeclined},
	ApplicationStatusOfferAccepted: {ApplicationStatusPaymentSubmitted, ApplicationStatusEnrolled},
	// Enrollment from PAYMENT_SUBMITTED is the normal path; from
	// OFFER_ACCEPTED it is the administrative override where payment was
	// confirmed out-of-band.
	ApplicationStatusPaymentSubmitted: {ApplicationStatusEnrolled},
	ApplicationStatusOfferDeclined:    {},
	ApplicationStatusEnrolled:         {},
}

// CanTransition reports whether moving from current to next is legal.
func CanTransition(current, next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether the status admits no further transitions.
func IsTerminalStatus(status ApplicationStatus) bool {
	return len(applicationTransitions[status]) == 0
}

// CanEnrollFrom reports whether enrollment is legal from the given status.
func CanEnrollFrom(status ApplicationStatus) bool {
	return CanTransition(status, ApplicationStatusEnrolled)
}

// Application is one admission attempt. After enrollment it becomes an
// immutable historical record cross-referenced by the Student entity.
type Application struct {
	ID                       string            `db:"id" json:"id"`
	ApplicantUserID          string            `db:"applicant_user_id" json:"applicant_user_id"`
	ProgramID                string            `db:"program_id" json:"program_id"`
	Status                   ApplicationStatus `db:"status" json:"status"`
	FirstName                string            `db:"first_name" json:"first_name"`
	LastName                 string            `db:"last_name" json:"last_name"`
	BirthDate                time.Time         `db:"birth_date" json:"birth_date"`
	PassportNo               string            `db:"passport_no" json:"passport_no"`
	AdmissionLetterGenerated bool              `db:"admission_letter_generated" json:"admission_letter_generated"`
	ReceiptGenerated         bool              `db:"receipt_generated" json:"receipt_generated"`
	CreatedAt                time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail enriches Application with program context.
type ApplicationDetail struct {
	Application
	ProgramName string `db:"program_name" json:"program_name"`
	School      string `db:"school" json:"school"`
	DegreeLevel string `db:"degree_level" json:"degree_level"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	ApplicantUserID string
	ProgramID       string
	Status          ApplicationStatus
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}
