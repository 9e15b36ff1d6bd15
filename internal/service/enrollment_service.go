package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	"github.com/noah-isme/uni-admissions-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type enrollmentApplicationRepo interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ForceStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

type studentRepository interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*models.Student, error)
	CreateEnrolled(ctx context.Context, student *models.Student, fromStatus models.ApplicationStatus) error
}

type offerByApplicationReader interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*models.Offer, error)
}

type identityAllocator interface {
	Allocate(ctx context.Context, firstName, lastName, existingNo string) (*StudentIdentity, error)
}

type enrollmentPaymentStore interface {
	FindCompletedByOfferID(ctx context.Context, offerID string) (*models.Payment, error)
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error
}

type provisioningDispatcher interface {
	DispatchAll(ctx context.Context, student *models.Student) error
}

// EnrollmentService turns an accepted, paid application into an enrolled
// student. Enroll is idempotent: a second call for the same application
// returns the already-created student without side effects.
type EnrollmentService struct {
	applications enrollmentApplicationRepo
	students     studentRepository
	offers       offerByApplicationReader
	payments     enrollmentPaymentStore
	programs     programReader
	identity     identityAllocator
	dispatcher   provisioningDispatcher
	audit        auditWriter
	logger       *zap.Logger

	defaultDurationYears int
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(
	applications enrollmentApplicationRepo,
	students studentRepository,
	offers offerByApplicationReader,
	payments enrollmentPaymentStore,
	programs programReader,
	identity identityAllocator,
	dispatcher provisioningDispatcher,
	audit auditWriter,
	logger *zap.Logger,
	defaultDurationYears int,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultDurationYears <= 0 {
		defaultDurationYears = 4
	}
	return &EnrollmentService{
		applications:         applications,
		students:             students,
		offers:               offers,
		payments:             payments,
		programs:             programs,
		identity:             identity,
		dispatcher:           dispatcher,
		audit:                audit,
		logger:               logger,
		defaultDurationYears: defaultDurationYears,
	}
}

// Enroll creates the student record for an application, transitions the
// application to ENROLLED, writes the audit entry and fires provisioning.
// The student insert and the status transition commit as one unit; every
// failure before the commit leaves no partial state behind.
func (s *EnrollmentService) Enroll(ctx context.Context, applicationID, actorID string) (*models.Student, error) {
	application, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	offer, err := s.offers.FindByApplicationID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no offer exists for this application")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}

	// Idempotent short-circuit: a student already exists for this
	// application. Repair the status if the earlier transition never landed.
	if existing, err := s.students.FindByApplicationID(ctx, applicationID); err == nil {
		if application.Status != models.ApplicationStatusEnrolled {
			if repairErr := s.applications.ForceStatus(ctx, applicationID, models.ApplicationStatusEnrolled); repairErr != nil {
				s.logger.Error("failed to repair application status for enrolled student",
					zap.String("application_id", applicationID), zap.Error(repairErr))
			}
		}
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing student")
	}

	if !models.CanEnrollFrom(application.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			"cannot enroll application in status "+string(application.Status))
	}

	payment, err := s.payments.FindCompletedByOfferID(ctx, offer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment")
	}

	program, err := s.programs.FindByID(ctx, application.ProgramID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	identity, err := s.identity.Allocate(ctx, application.FirstName, application.LastName, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	durationYears := s.defaultDurationYears
	if program != nil && program.DurationYears > 0 {
		durationYears = program.DurationYears
	}
	student := &models.Student{
		ApplicationID:      applicationID,
		StudentNo:          identity.StudentNo,
		InstitutionalEmail: identity.InstitutionalEmail,
		EnrollmentStatus:   models.EnrollmentStatusActive,
		ProgramID:          application.ProgramID,
		StartDate:          now,
		ExpectedGradDate:   now.AddDate(durationYears, 0, 0),
		LMSSyncStatus:      models.LMSSyncPending,
	}

	if err := s.students.CreateEnrolled(ctx, student, application.Status); err != nil {
		switch {
		case repository.IsUniqueViolation(err, "students_application_id_key"):
			// A concurrent enroll won the race. Return its student.
			existing, findErr := s.students.FindByApplicationID(ctx, applicationID)
			if findErr != nil {
				return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load concurrently enrolled student")
			}
			return existing, nil
		case repository.IsUniqueViolation(err, ""):
			return nil, appErrors.Wrap(err, appErrors.ErrIdentityAllocation.Code, appErrors.ErrIdentityAllocation.Status, "allocated identity collided, retry the enrollment")
		case errors.Is(err, repository.ErrStatusConflict):
			if existing, findErr := s.students.FindByApplicationID(ctx, applicationID); findErr == nil {
				return existing, nil
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "application status changed concurrently")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
		}
	}

	s.recordAudit(ctx, actorID, application, student, payment)

	// Stamp the gating payment as verified by the enrollment. Best-effort:
	// the student is already committed.
	if payment != nil && payment.VerifiedAt == nil {
		if err := s.payments.MarkVerified(ctx, payment.ID, now); err != nil {
			s.logger.Warn("failed to mark payment verified after enrollment",
				zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}

	// Provisioning is fire-and-forget: the student is enrolled regardless of
	// downstream outcomes.
	if err := s.dispatcher.DispatchAll(ctx, student); err != nil {
		s.logger.Error("failed to dispatch provisioning tasks",
			zap.String("student_id", student.ID), zap.Error(err))
	}

	return student, nil
}

// Get returns the student created for an application, if any.
func (s *EnrollmentService) Get(ctx context.Context, applicationID string) (*models.Student, error) {
	student, err := s.students.FindByApplicationID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student enrolled for this application")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *EnrollmentService) recordAudit(ctx context.Context, actorID string, application *models.Application, student *models.Student, payment *models.Payment) {
	role := "admin"
	if actorID == application.ApplicantUserID {
		role = "applicant"
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"status": application.Status})
	payload := map[string]interface{}{
		"status":     models.ApplicationStatusEnrolled,
		"student_id": student.ID,
		"student_no": student.StudentNo,
		"actor_role": role,
	}
	if payment != nil {
		payload["transaction_ref"] = payment.TransactionRef
	}
	newValues, _ := json.Marshal(payload)
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionEnroll,
		Resource:   "applications",
		ResourceID: &application.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
