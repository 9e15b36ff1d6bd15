package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	"github.com/noah-isme/uni-admissions-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type mockStudentStore struct {
	students   map[string]models.Student // keyed by application ID
	createErr  error
	fromStatus models.ApplicationStatus
}

func (m *mockStudentStore) FindByApplicationID(ctx context.Context, applicationID string) (*models.Student, error) {
	if s, ok := m.students[applicationID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) CreateEnrolled(ctx context.Context, student *models.Student, fromStatus models.ApplicationStatus) error {
	m.fromStatus = fromStatus
	if m.createErr != nil {
		return m.createErr
	}
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "stu-new"
	}
	m.students[student.ApplicationID] = *student
	return nil
}

type mockIdentityAllocator struct {
	identity StudentIdentity
	err      error
}

func (m *mockIdentityAllocator) Allocate(ctx context.Context, firstName, lastName, existingNo string) (*StudentIdentity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.identity, nil
}

type mockDispatcher struct {
	dispatched []string
	err        error
}

func (m *mockDispatcher) DispatchAll(ctx context.Context, student *models.Student) error {
	m.dispatched = append(m.dispatched, student.ID)
	return m.err
}

type enrollmentFixture struct {
	apps       *mockApplicationRepo
	students   *mockStudentStore
	offers     *mockOfferRepo
	payments   *mockPaymentRepo
	programs   *mockProgramReader
	dispatcher *mockDispatcher
	audit      *mockAuditWriter
	svc        *EnrollmentService
}

func newEnrollmentFixture(appStatus models.ApplicationStatus) *enrollmentFixture {
	f := &enrollmentFixture{
		apps: &mockApplicationRepo{applications: map[string]models.Application{
			"app-1": {ID: "app-1", ApplicantUserID: "user-1", ProgramID: "prog-1", Status: appStatus, FirstName: "Lina", LastName: "Karim"},
		}},
		students: &mockStudentStore{},
		offers: &mockOfferRepo{offers: map[string]models.Offer{
			"offer-1": {ID: "offer-1", ApplicationID: "app-1", Status: models.OfferStatusAccepted},
		}},
		payments: &mockPaymentRepo{payments: map[string]models.Payment{
			"pay-1": {ID: "pay-1", OfferID: "offer-1", Status: models.PaymentStatusCompleted, TransactionRef: "TRX-0091"},
		}},
		programs:   &mockProgramReader{programs: map[string]models.Program{"prog-1": softwareProgram()}},
		dispatcher: &mockDispatcher{},
		audit:      &mockAuditWriter{},
	}
	identity := &mockIdentityAllocator{identity: StudentIdentity{
		StudentNo:          "SK20260042",
		InstitutionalEmail: "lina.karim@student.skyline.edu",
	}}
	f.svc = NewEnrollmentService(f.apps, f.students, f.offers, f.payments, f.programs,
		identity, f.dispatcher, f.audit, nil, 4)
	return f
}

func TestEnroll(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)

	student, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "SK20260042", student.StudentNo)
	assert.Equal(t, "lina.karim@student.skyline.edu", student.InstitutionalEmail)
	assert.Equal(t, models.EnrollmentStatusActive, student.EnrollmentStatus)
	assert.Equal(t, models.LMSSyncPending, student.LMSSyncStatus)
	// Program duration drives the expected graduation date.
	assert.Equal(t, student.StartDate.AddDate(3, 0, 0), student.ExpectedGradDate)
	assert.Equal(t, models.ApplicationStatusPaymentSubmitted, f.students.fromStatus)
	assert.Equal(t, []string{student.ID}, f.dispatcher.dispatched)
	assert.Contains(t, f.audit.actions(), models.AuditActionEnroll)
}

func TestEnrollFromAcceptedOfferIsAdminOverride(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusOfferAccepted)

	student, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusOfferAccepted, f.students.fromStatus)
	assert.NotEmpty(t, student.ID)
}

func TestEnrollInvalidStatus(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusSubmitted)

	_, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestEnrollNoOffer(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	f.offers.offers = nil

	_, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollIdempotent(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)

	first, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)

	second, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, first.StudentNo, second.StudentNo)
	// No second provisioning dispatch, no second audit entry.
	assert.Len(t, f.dispatcher.dispatched, 1)
	assert.Len(t, f.audit.entries, 1)
}

func TestEnrollRepairsStatusForExistingStudent(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	f.students.students = map[string]models.Student{
		"app-1": {ID: "stu-1", ApplicationID: "app-1", StudentNo: "SK20260001"},
	}

	student, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", student.ID)
	assert.Equal(t, models.ApplicationStatusEnrolled, f.apps.forced["app-1"])
}

func TestEnrollConcurrentWinnerReturned(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	winner := models.Student{ID: "stu-winner", ApplicationID: "app-1", StudentNo: "SK20260007"}
	f.students.createErr = &pq.Error{Code: "23505", Constraint: "students_application_id_key"}
	f.students.students = map[string]models.Student{"app-1": winner}

	// The pre-insert existence check must miss for the race to reach the
	// constraint, so serve NoRows once.
	checked := false
	orig := f.students.students
	f.students.students = nil
	f.svc.students = &raceStudentStore{inner: f.students, after: orig, first: &checked}

	student, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-winner", student.ID)
}

// raceStudentStore misses the first lookup and serves the winner afterwards,
// simulating an insert that lands between the check and the create.
type raceStudentStore struct {
	inner *mockStudentStore
	after map[string]models.Student
	first *bool
}

func (r *raceStudentStore) FindByApplicationID(ctx context.Context, applicationID string) (*models.Student, error) {
	if !*r.first {
		*r.first = true
		return nil, sql.ErrNoRows
	}
	if s, ok := r.after[applicationID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (r *raceStudentStore) CreateEnrolled(ctx context.Context, student *models.Student, fromStatus models.ApplicationStatus) error {
	return r.inner.CreateEnrolled(ctx, student, fromStatus)
}

func TestEnrollIdentityCollision(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	f.students.createErr = &pq.Error{Code: "23505", Constraint: "students_institutional_email_key"}

	_, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIdentityAllocation.Code, appErrors.FromError(err).Code)
}

func TestEnrollStatusConflict(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	f.students.createErr = repository.ErrStatusConflict

	_, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollSurvivesDispatcherFailure(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	f.dispatcher.err = errors.New("queue unavailable")

	student, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
}

func TestEnrollAuditRecordsActorRole(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)

	_, err := f.svc.Enroll(context.Background(), "app-1", "user-1")
	require.NoError(t, err)

	require.Len(t, f.audit.entries, 1)
	assert.Contains(t, string(f.audit.entries[0].NewValues), `"actor_role":"applicant"`)
	assert.Contains(t, string(f.audit.entries[0].NewValues), `"transaction_ref":"TRX-0091"`)
}

func TestEnrollStampsPaymentVerified(t *testing.T) {
	f := newEnrollmentFixture(models.ApplicationStatusPaymentSubmitted)
	require.Nil(t, f.payments.payments["pay-1"].VerifiedAt)

	_, err := f.svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)

	stamped := f.payments.payments["pay-1"]
	require.NotNil(t, stamped.VerifiedAt)
	assert.Equal(t, models.PaymentStatusCompleted, stamped.Status)
}
