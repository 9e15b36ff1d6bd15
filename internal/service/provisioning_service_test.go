package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type mockSyncStudents struct {
	mu       sync.Mutex
	students map[string]models.Student // keyed by student ID
}

func (m *mockSyncStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSyncStudents) UpdateLMSSync(ctx context.Context, id string, token *string, status models.LMSSyncStatus, syncedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.LMSSyncToken = token
	s.LMSSyncStatus = status
	s.LMSSyncedAt = syncedAt
	m.students[id] = s
	return nil
}

type mockAssetRepo struct {
	mu      sync.Mutex
	assets  map[string]models.ITAsset
	access  map[string]models.ProvisionedAccess // keyed by student|asset
	upserts int
}

func accessKey(studentID, assetID string) string { return studentID + "|" + assetID }

func (m *mockAssetRepo) FindByID(ctx context.Context, id string) (*models.ITAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assets[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssetRepo) ListAutoProvision(ctx context.Context) ([]models.ITAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ITAsset
	for _, a := range m.assets {
		if a.AutoProvision {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssetRepo) AccessExists(ctx context.Context, studentID, assetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.access[accessKey(studentID, assetID)]
	return ok, nil
}

func (m *mockAssetRepo) ListAccessByStudent(ctx context.Context, studentID string) ([]models.ProvisionedAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProvisionedAccess
	for _, a := range m.access {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssetRepo) CreateAccess(ctx context.Context, access *models.ProvisionedAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.access == nil {
		m.access = make(map[string]models.ProvisionedAccess)
	}
	if access.ID == "" {
		access.ID = fmt.Sprintf("access-%d", len(m.access)+1)
	}
	m.access[accessKey(access.StudentID, access.AssetID)] = *access
	return nil
}

func (m *mockAssetRepo) UpsertAccess(ctx context.Context, access *models.ProvisionedAccess) error {
	m.mu.Lock()
	m.upserts++
	m.mu.Unlock()
	return m.CreateAccess(ctx, access)
}

type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[string]models.ProvisionTask
}

func (m *mockTaskStore) Create(ctx context.Context, task *models.ProvisionTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks == nil {
		m.tasks = make(map[string]models.ProvisionTask)
	}
	if task.ID == "" {
		task.ID = fmt.Sprintf("task-%d", len(m.tasks)+1)
	}
	m.tasks[task.ID] = *task
	return nil
}

func (m *mockTaskStore) UpdateStatus(ctx context.Context, id string, status models.ProvisionTaskStatus, attempts int, lastError *string, finishedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = status
	t.Attempts = attempts
	t.LastError = lastError
	t.FinishedAt = finishedAt
	m.tasks[id] = t
	return nil
}

func (m *mockTaskStore) ListByStudent(ctx context.Context, studentID string) ([]models.ProvisionTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProvisionTask
	for _, t := range m.tasks {
		if t.StudentID == studentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTaskStore) byStatus(status models.ProvisionTaskStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

type mockLMS struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockLMS) Provision(ctx context.Context, studentNo, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "lms-token-" + studentNo, nil
}

type provisioningFixture struct {
	students *mockSyncStudents
	assets   *mockAssetRepo
	tasks    *mockTaskStore
	lms      *mockLMS
	audit    *mockAuditWriter
	svc      *ProvisioningService
}

func newProvisioningFixture(t *testing.T, maxAttempts int) *provisioningFixture {
	t.Helper()
	f := &provisioningFixture{
		students: &mockSyncStudents{students: map[string]models.Student{
			"stu-1": {ID: "stu-1", StudentNo: "SK20260042", InstitutionalEmail: "lina.karim@student.skyline.edu", LMSSyncStatus: models.LMSSyncPending},
		}},
		assets: &mockAssetRepo{assets: map[string]models.ITAsset{
			"asset-vpn": {ID: "asset-vpn", Name: "VPN", AutoProvision: true},
			"asset-lab": {ID: "asset-lab", Name: "Robotics Lab", AutoProvision: false},
		}},
		tasks: &mockTaskStore{},
		lms:   &mockLMS{},
		audit: &mockAuditWriter{},
	}
	f.svc = NewProvisioningService(f.students, f.assets, f.tasks, f.lms, f.audit, nil,
		2, maxAttempts, time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	f.svc.Start(ctx)
	t.Cleanup(func() {
		f.svc.Stop()
		cancel()
	})
	return f
}

func TestDispatchAllProvisionsEverything(t *testing.T) {
	f := newProvisioningFixture(t, 1)

	student := f.students.students["stu-1"]
	require.NoError(t, f.svc.DispatchAll(context.Background(), &student))

	// One LMS task plus one per auto-provision asset.
	require.Eventually(t, func() bool {
		return f.tasks.byStatus(models.ProvisionTaskSucceeded) == 2
	}, 2*time.Second, 10*time.Millisecond)

	synced, err := f.students.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.LMSSyncDone, synced.LMSSyncStatus)
	require.NotNil(t, synced.LMSSyncToken)
	assert.Equal(t, "lms-token-SK20260042", *synced.LMSSyncToken)

	exists, err := f.assets.AccessExists(context.Background(), "stu-1", "asset-vpn")
	require.NoError(t, err)
	assert.True(t, exists)

	// The non-auto asset was not touched.
	exists, err = f.assets.AccessExists(context.Background(), "stu-1", "asset-lab")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDispatchAllRequiresStartedPool(t *testing.T) {
	f := &provisioningFixture{
		students: &mockSyncStudents{},
		assets:   &mockAssetRepo{},
		tasks:    &mockTaskStore{},
		lms:      &mockLMS{},
		audit:    &mockAuditWriter{},
	}
	svc := NewProvisioningService(f.students, f.assets, f.tasks, f.lms, f.audit, nil,
		1, 1, time.Millisecond, time.Hour)

	err := svc.DispatchAll(context.Background(), &models.Student{ID: "stu-1"})
	require.Error(t, err)
}

func TestProvisionLMSFailureMarksTaskFailed(t *testing.T) {
	f := newProvisioningFixture(t, 2)
	f.lms.err = errors.New("lms unreachable")

	student := f.students.students["stu-1"]
	require.NoError(t, f.svc.DispatchAll(context.Background(), &student))

	require.Eventually(t, func() bool {
		return f.tasks.byStatus(models.ProvisionTaskFailed) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	failed, err := f.students.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.LMSSyncFailed, failed.LMSSyncStatus)

	// Initial attempt plus one retry.
	require.Eventually(t, func() bool {
		f.lms.mu.Lock()
		defer f.lms.mu.Unlock()
		return f.lms.calls == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProvisionAssetSkipsExistingAccess(t *testing.T) {
	f := newProvisioningFixture(t, 1)
	require.NoError(t, f.assets.CreateAccess(context.Background(), &models.ProvisionedAccess{
		StudentID: "stu-1", AssetID: "asset-vpn", Status: models.AccessStatusActive,
	}))

	student := f.students.students["stu-1"]
	require.NoError(t, f.svc.DispatchAll(context.Background(), &student))

	require.Eventually(t, func() bool {
		return f.tasks.byStatus(models.ProvisionTaskSucceeded) == 2
	}, 2*time.Second, 10*time.Millisecond)

	access, err := f.assets.ListAccessByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Len(t, access, 1)
}

func TestRetryAsset(t *testing.T) {
	f := newProvisioningFixture(t, 1)

	access, err := f.svc.RetryAsset(context.Background(), "stu-1", "asset-lab", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, models.AccessStatusActive, access.Status)
	assert.NotEmpty(t, access.Credentials)
	assert.Equal(t, 1, f.assets.upserts)
	assert.Equal(t, 1, f.tasks.byStatus(models.ProvisionTaskSucceeded))
	assert.Contains(t, f.audit.actions(), models.AuditActionProvisionAsset)
}

func TestRetryAssetUnknownStudent(t *testing.T) {
	f := newProvisioningFixture(t, 1)

	_, err := f.svc.RetryAsset(context.Background(), "missing", "asset-lab", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRetryAssetUnknownAsset(t *testing.T) {
	f := newProvisioningFixture(t, 1)

	_, err := f.svc.RetryAsset(context.Background(), "stu-1", "missing", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProvisioningStatus(t *testing.T) {
	f := newProvisioningFixture(t, 1)

	student := f.students.students["stu-1"]
	require.NoError(t, f.svc.DispatchAll(context.Background(), &student))
	require.Eventually(t, func() bool {
		return f.tasks.byStatus(models.ProvisionTaskSucceeded) == 2
	}, 2*time.Second, 10*time.Millisecond)

	status, err := f.svc.Status(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.LMSSyncDone, status.LMSSyncStatus)
	assert.Len(t, status.Tasks, 2)
	assert.Len(t, status.Access, 1)

	_, err = f.svc.Status(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
