package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type offerRepository interface {
	FindByID(ctx context.Context, id string) (*models.Offer, error)
	FindByApplicationID(ctx context.Context, applicationID string) (*models.Offer, error)
	RespondIfPending(ctx context.Context, id string, status models.OfferStatus, respondedAt time.Time) (int64, error)
}

type applicationTransitioner interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatusIf(ctx context.Context, id string, expected, next models.ApplicationStatus) (int64, error)
}

// RespondToOfferRequest carries the applicant's one-time decision.
type RespondToOfferRequest struct {
	Decision string `json:"decision" validate:"required,oneof=ACCEPTED REJECTED accepted rejected"`
}

// OfferService handles the one-shot offer response.
type OfferService struct {
	repo         offerRepository
	applications applicationTransitioner
	audit        auditWriter
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewOfferService constructs OfferService.
func NewOfferService(repo offerRepository, applications applicationTransitioner, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *OfferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferService{repo: repo, applications: applications, audit: audit, validator: validate, logger: logger}
}

// Get returns an offer by ID.
func (s *OfferService) Get(ctx context.Context, id string) (*models.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}
	return offer, nil
}

// Respond records the applicant's decision exactly once. The update is a
// compare-and-swap on PENDING; a losing concurrent writer observes zero rows
// affected and surfaces ALREADY_RESPONDED without mutating anything.
func (s *OfferService) Respond(ctx context.Context, id, actorID string, req RespondToOfferRequest) (*models.Offer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer response payload")
	}
	decision := models.OfferStatus(strings.ToUpper(req.Decision))

	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}
	if offer.Status != models.OfferStatusPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyResponded, "offer has already been responded to")
	}

	respondedAt := time.Now().UTC()
	affected, err := s.repo.RespondIfPending(ctx, id, decision, respondedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record offer response")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrAlreadyResponded, "offer has already been responded to")
	}

	next := models.ApplicationStatusOfferAccepted
	if decision == models.OfferStatusRejected {
		next = models.ApplicationStatusOfferDeclined
	}
	if _, err := s.applications.UpdateStatusIf(ctx, offer.ApplicationID, models.ApplicationStatusAdmitted, next); err != nil {
		s.logger.Error("failed to advance application after offer response",
			zap.String("application_id", offer.ApplicationID), zap.Error(err))
	}

	newValues, _ := json.Marshal(map[string]interface{}{"status": decision})
	oldValues, _ := json.Marshal(map[string]interface{}{"status": models.OfferStatusPending})
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionOfferRespond,
		Resource:   "offers",
		ResourceID: &id,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record offer audit log", zap.Error(err))
	}

	offer.Status = decision
	offer.RespondedAt = &respondedAt
	return offer, nil
}
