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

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindCompletedByOfferID(ctx context.Context, offerID string) (*models.Payment, error)
	ListByOfferID(ctx context.Context, offerID string) ([]models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	CompleteIfPending(ctx context.Context, id string, verifiedAt time.Time) (int64, error)
}

type offerReader interface {
	FindByID(ctx context.Context, id string) (*models.Offer, error)
}

// SubmitPaymentRequest describes a tuition remittance.
type SubmitPaymentRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	TransactionRef string `json:"transaction_ref" validate:"required"`
	Method         string `json:"method" validate:"required"`
}

// PaymentService records tuition payments and their verification.
type PaymentService struct {
	repo         paymentRepository
	offers       offerReader
	applications applicationTransitioner
	audit        auditWriter
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, offers offerReader, applications applicationTransitioner, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, offers: offers, applications: applications, audit: audit, validator: validate, logger: logger}
}

// Submit records a payment awaiting verification and advances the application
// to PAYMENT_SUBMITTED.
func (s *PaymentService) Submit(ctx context.Context, offerID, actorID string, req SubmitPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}
	if offer.Status != models.OfferStatusAccepted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "offer must be accepted before payment")
	}

	application, err := s.applications.FindByID(ctx, offer.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !models.CanTransition(application.Status, models.ApplicationStatusPaymentSubmitted) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			"cannot submit payment while application is "+string(application.Status))
	}

	payment := &models.Payment{
		OfferID:        offerID,
		Amount:         req.Amount,
		Status:         models.PaymentStatusPendingVerification,
		TransactionRef: req.TransactionRef,
		Method:         req.Method,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	if _, err := s.applications.UpdateStatusIf(ctx, offer.ApplicationID, application.Status, models.ApplicationStatusPaymentSubmitted); err != nil {
		s.logger.Error("failed to advance application after payment submission",
			zap.String("application_id", offer.ApplicationID), zap.Error(err))
	}

	newValues, _ := json.Marshal(map[string]interface{}{"payment_id": payment.ID, "transaction_ref": payment.TransactionRef})
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPaymentSubmit,
		Resource:   "payments",
		ResourceID: &payment.ID,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.Error(err))
	}

	return payment, nil
}

// Verify marks a payment COMPLETED. The update only succeeds while the
// payment still awaits verification.
func (s *PaymentService) Verify(ctx context.Context, id, actorID string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	verifiedAt := time.Now().UTC()
	affected, err := s.repo.CompleteIfPending(ctx, id, verifiedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify payment")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is not awaiting verification")
	}

	oldValues, _ := json.Marshal(map[string]interface{}{"status": payment.Status})
	newValues, _ := json.Marshal(map[string]interface{}{"status": models.PaymentStatusCompleted})
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPaymentVerify,
		Resource:   "payments",
		ResourceID: &id,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record payment verification audit log", zap.Error(err))
	}

	payment.Status = models.PaymentStatusCompleted
	payment.VerifiedAt = &verifiedAt
	return payment, nil
}

// CompletedPaymentFor exposes the enrollment and letter gate: the completed
// payment for an offer, or nil when none exists.
func (s *PaymentService) CompletedPaymentFor(ctx context.Context, offerID string) (*models.Payment, error) {
	payment, err := s.repo.FindCompletedByOfferID(ctx, offerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query completed payment")
	}
	return payment, nil
}

// ListForOffer returns all payments recorded against an offer.
func (s *PaymentService) ListForOffer(ctx context.Context, offerID string) ([]models.Payment, error) {
	payments, err := s.repo.ListByOfferID(ctx, offerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}
