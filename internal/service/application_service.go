package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	Create(ctx context.Context, application *models.Application) error
	UpdateStatusIf(ctx context.Context, id string, expected, next models.ApplicationStatus) (int64, error)
}

type offerWriter interface {
	Create(ctx context.Context, offer *models.Offer) error
}

type programReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type auditWriter interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// SubmitApplicationRequest describes a new admission application.
type SubmitApplicationRequest struct {
	ProgramID  string    `json:"program_id" validate:"required"`
	FirstName  string    `json:"first_name" validate:"required"`
	LastName   string    `json:"last_name" validate:"required"`
	BirthDate  time.Time `json:"birth_date" validate:"required"`
	PassportNo string    `json:"passport_no" validate:"required"`
}

// AdmitApplicationRequest carries the admission decision parameters.
type AdmitApplicationRequest struct {
	DiscountPercent *int `json:"discount_percent,omitempty" validate:"omitempty,min=0,max=100"`
	DeadlineDays    int  `json:"deadline_days" validate:"omitempty,min=1,max=180"`
}

// ApplicationService drives an application from submission to admission.
type ApplicationService struct {
	repo            applicationRepository
	offers          offerWriter
	programs        programReader
	audit           auditWriter
	validator       *validator.Validate
	logger          *zap.Logger
	discountPercent int
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, offers offerWriter, programs programReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger, discountPercent int) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, offers: offers, programs: programs, audit: audit, validator: validate, logger: logger, discountPercent: discountPercent}
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applications, pagination, nil
}

// Get returns a single application with program context.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return detail, nil
}

// Submit registers a new application in SUBMITTED state.
func (s *ApplicationService) Submit(ctx context.Context, applicantUserID string, req SubmitApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	application := &models.Application{
		ApplicantUserID: applicantUserID,
		ProgramID:       req.ProgramID,
		Status:          models.ApplicationStatusSubmitted,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		BirthDate:       req.BirthDate,
		PassportNo:      req.PassportNo,
	}
	if err := s.repo.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.recordAudit(ctx, applicantUserID, models.AuditActionApplicationSubmt, application.ID, "", models.ApplicationStatusSubmitted, nil)
	return application, nil
}

// StartReview moves an application into UNDER_REVIEW.
func (s *ApplicationService) StartReview(ctx context.Context, id, actorID string) (*models.ApplicationDetail, error) {
	if err := s.transition(ctx, id, models.ApplicationStatusUnderReview, ""); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, models.AuditActionApplicationReview, id,
		models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview, nil)
	return s.Get(ctx, id)
}

// Admit records the admission decision and creates the offer with tuition
// figures from the fee table.
func (s *ApplicationService) Admit(ctx context.Context, id, actorID string, req AdmitApplicationRequest) (*models.Offer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}

	application, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	program, err := s.programs.FindByID(ctx, application.ProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	tuition, err := TuitionFor(program.DegreeLevel, program.School)
	if err != nil {
		return nil, err
	}
	discount := s.discountPercent
	if req.DiscountPercent != nil {
		discount = *req.DiscountPercent
	}
	deadlineDays := req.DeadlineDays
	if deadlineDays <= 0 {
		deadlineDays = 30
	}

	if err := s.transition(ctx, id, models.ApplicationStatusAdmitted, application.Status); err != nil {
		return nil, err
	}

	offer := &models.Offer{
		ApplicationID:   id,
		TuitionAmount:   tuition,
		DiscountPercent: discount,
		AmountDue:       AmountDue(tuition, discount),
		PaymentDeadline: time.Now().UTC().AddDate(0, 0, deadlineDays),
		Status:          models.OfferStatusPending,
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offer")
	}

	s.recordAudit(ctx, actorID, models.AuditActionApplicationAdmit, id, application.Status, models.ApplicationStatusAdmitted,
		map[string]interface{}{"offer_id": offer.ID, "amount_due": offer.AmountDue})
	return offer, nil
}

// transition advances the application, mapping a zero-row CAS to the named
// transition error.
func (s *ApplicationService) transition(ctx context.Context, id string, next models.ApplicationStatus, known models.ApplicationStatus) error {
	current := known
	if current == "" {
		application, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		current = application.Status
	}

	if !models.CanTransition(current, next) {
		return appErrors.Clone(appErrors.ErrInvalidState,
			"cannot move application from "+string(current)+" to "+string(next))
	}

	affected, err := s.repo.UpdateStatusIf(ctx, id, current, next)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrInvalidState, "application status changed concurrently")
	}
	return nil
}

func (s *ApplicationService) recordAudit(ctx context.Context, actorID, action, applicationID string, prior, next models.ApplicationStatus, extra map[string]interface{}) {
	payload := map[string]interface{}{"status": next}
	for k, v := range extra {
		payload[k] = v
	}
	newValues, _ := json.Marshal(payload)
	var oldValues []byte
	if prior != "" {
		oldValues, _ = json.Marshal(map[string]interface{}{"status": prior})
	}
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "applications",
		ResourceID: &applicationID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record application audit log", zap.Error(err))
	}
}
