package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/letters"
)

type letterApplicationRepo interface {
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	SetDocumentFlags(ctx context.Context, id string, admissionLetter, receipt bool) error
}

type letterOfferRepo interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*models.Offer, error)
	SetLetterURL(ctx context.Context, id, column, url string) error
}

type completedPaymentReader interface {
	FindCompletedByOfferID(ctx context.Context, offerID string) (*models.Payment, error)
}

type enrolledStudentReader interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*models.Student, error)
}

type letterRenderer interface {
	Render(t letters.LetterType, data letters.LetterData) ([]byte, error)
}

type letterStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type urlSigner interface {
	Generate(applicationID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (applicationID, relPath string, expiresAt time.Time, err error)
}

// IssuedLetter is the result of generating an official document.
type IssuedLetter struct {
	Type          letters.LetterType `json:"type"`
	ApplicationID string             `json:"application_id"`
	Path          string             `json:"path"`
	DownloadToken string             `json:"download_token"`
	ExpiresAt     time.Time          `json:"expires_at"`
}

// LetterService generates offer and admission letters, stores the artifacts
// and hands out signed download tokens. The admission letter is gated on a
// verified payment; the offer letter is available from admission onwards.
type LetterService struct {
	applications letterApplicationRepo
	offers       letterOfferRepo
	payments     completedPaymentReader
	students     enrolledStudentReader
	renderer     letterRenderer
	store        letterStore
	signer       urlSigner
	audit        auditWriter
	logger       *zap.Logger

	institutionName string
	academicYear    string
	intake          string
}

// NewLetterService constructs LetterService.
func NewLetterService(
	applications letterApplicationRepo,
	offers letterOfferRepo,
	payments completedPaymentReader,
	students enrolledStudentReader,
	renderer letterRenderer,
	store letterStore,
	signer urlSigner,
	audit auditWriter,
	logger *zap.Logger,
	institutionName, academicYear, intake string,
) *LetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LetterService{
		applications:    applications,
		offers:          offers,
		payments:        payments,
		students:        students,
		renderer:        renderer,
		store:           store,
		signer:          signer,
		audit:           audit,
		logger:          logger,
		institutionName: institutionName,
		academicYear:    academicYear,
		intake:          intake,
	}
}

// IssueOfferLetter renders and stores the offer letter. Regeneration
// overwrites the existing artifact at the same path.
func (s *LetterService) IssueOfferLetter(ctx context.Context, applicationID, actorID string) (*IssuedLetter, error) {
	detail, offer, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	data := s.letterData(detail, offer, "", "")
	return s.issue(ctx, letters.TypeOffer, detail, offer, data, actorID)
}

// IssueAdmissionLetter renders and stores the admission letter. It requires a
// completed payment against the offer; without one the caller receives
// PAYMENT_REQUIRED and nothing is generated.
func (s *LetterService) IssueAdmissionLetter(ctx context.Context, applicationID, actorID string) (*IssuedLetter, error) {
	detail, offer, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.FindCompletedByOfferID(ctx, offer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment")
	}
	if payment == nil {
		return nil, appErrors.Clone(appErrors.ErrPaymentRequired, "admission letter requires a completed payment")
	}

	studentNo := ""
	if student, err := s.students.FindByApplicationID(ctx, applicationID); err == nil {
		studentNo = student.StudentNo
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	data := s.letterData(detail, offer, payment.TransactionRef, studentNo)
	issued, err := s.issue(ctx, letters.TypeAdmission, detail, offer, data, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.applications.SetDocumentFlags(ctx, applicationID, true, detail.ReceiptGenerated); err != nil {
		s.logger.Warn("failed to flag admission letter on application",
			zap.String("application_id", applicationID), zap.Error(err))
	}
	return issued, nil
}

// Download resolves a signed token to the stored artifact.
func (s *LetterService) Download(ctx context.Context, token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "letter not found")
	}
	return file, path.Base(relPath), nil
}

func (s *LetterService) load(ctx context.Context, applicationID string) (*models.ApplicationDetail, *models.Offer, error) {
	detail, err := s.applications.FindDetailByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	offer, err := s.offers.FindByApplicationID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "no offer exists for this application")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}
	return detail, offer, nil
}

func (s *LetterService) letterData(detail *models.ApplicationDetail, offer *models.Offer, paymentRef, studentNo string) letters.LetterData {
	return letters.LetterData{
		InstitutionName: s.institutionName,
		ApplicantName:   detail.FirstName + " " + detail.LastName,
		ProgramName:     detail.ProgramName,
		School:          detail.School,
		DegreeLevel:     detail.DegreeLevel,
		AcademicYear:    s.academicYear,
		Intake:          s.intake,
		TuitionAmount:   offer.TuitionAmount,
		DiscountPercent: offer.DiscountPercent,
		AmountDue:       offer.AmountDue,
		PaymentRef:      paymentRef,
		PaymentDeadline: offer.PaymentDeadline.Format("2 January 2006"),
		StudentNo:       studentNo,
	}
}

func (s *LetterService) issue(ctx context.Context, t letters.LetterType, detail *models.ApplicationDetail, offer *models.Offer, data letters.LetterData, actorID string) (*IssuedLetter, error) {
	pdf, err := s.renderer.Render(t, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render letter")
	}

	relPath := letters.Path(t, detail.ID)
	if _, err := s.store.Save(relPath, pdf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store letter")
	}

	column := "offer_letter_url"
	if t == letters.TypeAdmission {
		column = "admission_letter_url"
	}
	if err := s.offers.SetLetterURL(ctx, offer.ID, column, relPath); err != nil {
		s.logger.Warn("failed to record letter location on offer",
			zap.String("offer_id", offer.ID), zap.Error(err))
	}

	token, expiresAt, err := s.signer.Generate(detail.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	newValues, _ := json.Marshal(map[string]interface{}{"letter_type": t, "path": relPath})
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionLetterIssue,
		Resource:   "applications",
		ResourceID: &detail.ID,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record letter audit log", zap.Error(err))
	}

	return &IssuedLetter{
		Type:          t,
		ApplicationID: detail.ID,
		Path:          relPath,
		DownloadToken: token,
		ExpiresAt:     expiresAt,
	}, nil
}
