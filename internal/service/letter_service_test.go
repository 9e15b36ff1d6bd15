package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/letters"
	"github.com/noah-isme/uni-admissions-api/pkg/storage"
)

type mockRenderer struct {
	rendered []letters.LetterType
	lastData letters.LetterData
}

func (m *mockRenderer) Render(t letters.LetterType, data letters.LetterData) ([]byte, error) {
	m.rendered = append(m.rendered, t)
	m.lastData = data
	return []byte("%PDF-1.4 stub"), nil
}

type letterFixture struct {
	apps     *mockApplicationRepo
	offers   *mockOfferRepo
	payments *mockPaymentRepo
	students *mockStudentStore
	renderer *mockRenderer
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	audit    *mockAuditWriter
	svc      *LetterService
}

func newLetterFixture(t *testing.T) *letterFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &letterFixture{
		apps: &mockApplicationRepo{applications: map[string]models.Application{
			"app-1": {ID: "app-1", ApplicantUserID: "user-1", Status: models.ApplicationStatusAdmitted, FirstName: "Lina", LastName: "Karim"},
		}},
		offers: &mockOfferRepo{offers: map[string]models.Offer{
			"offer-1": pendingOffer(),
		}},
		payments: &mockPaymentRepo{},
		students: &mockStudentStore{},
		renderer: &mockRenderer{},
		store:    store,
		signer:   storage.NewSignedURLSigner("letter-secret", time.Hour),
		audit:    &mockAuditWriter{},
	}
	f.svc = NewLetterService(f.apps, f.offers, f.payments, f.students,
		f.renderer, f.store, f.signer, f.audit, nil,
		"Skyline University", "2026/2027", "Fall")
	return f
}

func TestIssueOfferLetter(t *testing.T) {
	f := newLetterFixture(t)

	issued, err := f.svc.IssueOfferLetter(context.Background(), "app-1", "staff-1")
	require.NoError(t, err)

	assert.Equal(t, letters.TypeOffer, issued.Type)
	assert.Equal(t, "offer-letters/offer_app-1.pdf", issued.Path)
	assert.Equal(t, "offer-letters/offer_app-1.pdf", f.offers.letterURLs["offer_letter_url"])
	assert.Equal(t, "Lina Karim", f.renderer.lastData.ApplicantName)
	assert.Equal(t, "30 September 2026", f.renderer.lastData.PaymentDeadline)
	assert.Contains(t, f.audit.actions(), models.AuditActionLetterIssue)

	// The artifact landed on disk and the token resolves back to it.
	appID, relPath, _, err := f.signer.Parse(issued.DownloadToken, false)
	require.NoError(t, err)
	assert.Equal(t, "app-1", appID)
	assert.Equal(t, issued.Path, relPath)

	file, name, err := f.svc.Download(context.Background(), issued.DownloadToken)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	assert.Equal(t, "offer_app-1.pdf", name)
}

func TestIssueAdmissionLetterRequiresPayment(t *testing.T) {
	f := newLetterFixture(t)

	_, err := f.svc.IssueAdmissionLetter(context.Background(), "app-1", "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentRequired.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.renderer.rendered)
}

func TestIssueAdmissionLetter(t *testing.T) {
	f := newLetterFixture(t)
	f.payments.payments = map[string]models.Payment{
		"pay-1": {ID: "pay-1", OfferID: "offer-1", Status: models.PaymentStatusCompleted, TransactionRef: "TRX-0091"},
	}
	f.students.students = map[string]models.Student{
		"app-1": {ID: "stu-1", ApplicationID: "app-1", StudentNo: "SK20260042"},
	}

	issued, err := f.svc.IssueAdmissionLetter(context.Background(), "app-1", "staff-1")
	require.NoError(t, err)

	assert.Equal(t, letters.TypeAdmission, issued.Type)
	assert.Equal(t, "admission-letters/admission_app-1.pdf", issued.Path)
	assert.Equal(t, "TRX-0091", f.renderer.lastData.PaymentRef)
	assert.Equal(t, "SK20260042", f.renderer.lastData.StudentNo)
	assert.True(t, f.apps.applications["app-1"].AdmissionLetterGenerated)
}

func TestIssueLetterNoOffer(t *testing.T) {
	f := newLetterFixture(t)
	f.offers.offers = nil

	_, err := f.svc.IssueOfferLetter(context.Background(), "app-1", "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDownloadRejectsTamperedToken(t *testing.T) {
	f := newLetterFixture(t)

	issued, err := f.svc.IssueOfferLetter(context.Background(), "app-1", "staff-1")
	require.NoError(t, err)

	_, _, err = f.svc.Download(context.Background(), issued.DownloadToken+"0")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestDownloadExpiredToken(t *testing.T) {
	f := newLetterFixture(t)
	expiredSigner := storage.NewSignedURLSigner("letter-secret", time.Nanosecond)
	token, _, err := expiredSigner.Generate("app-1", "offer-letters/offer_app-1.pdf")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	_, _, err = f.svc.Download(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
