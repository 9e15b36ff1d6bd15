package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/jobs"
)

type lmsProvisioner interface {
	Provision(ctx context.Context, studentNo, email string) (string, error)
}

type studentSyncStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateLMSSync(ctx context.Context, id string, token *string, status models.LMSSyncStatus, syncedAt *time.Time) error
}

type assetRepository interface {
	FindByID(ctx context.Context, id string) (*models.ITAsset, error)
	ListAutoProvision(ctx context.Context) ([]models.ITAsset, error)
	AccessExists(ctx context.Context, studentID, assetID string) (bool, error)
	ListAccessByStudent(ctx context.Context, studentID string) ([]models.ProvisionedAccess, error)
	CreateAccess(ctx context.Context, access *models.ProvisionedAccess) error
	UpsertAccess(ctx context.Context, access *models.ProvisionedAccess) error
}

type provisionTaskStore interface {
	Create(ctx context.Context, task *models.ProvisionTask) error
	UpdateStatus(ctx context.Context, id string, status models.ProvisionTaskStatus, attempts int, lastError *string, finishedAt *time.Time) error
	ListByStudent(ctx context.Context, studentID string) ([]models.ProvisionTask, error)
}

// ProvisioningStatus bundles the inspectable provisioning state of a student.
type ProvisioningStatus struct {
	LMSSyncStatus models.LMSSyncStatus       `json:"lms_sync_status"`
	Tasks         []models.ProvisionTask     `json:"tasks"`
	Access        []models.ProvisionedAccess `json:"access"`
}

type provisionPayload struct {
	TaskID    string
	StudentID string
	Kind      models.ProvisionTaskKind
	AssetID   string
}

// ProvisioningService dispatches downstream account and access provisioning
// after enrollment. Tasks run on a worker pool; every task leaves a database
// record so failures are visible and retryable.
type ProvisioningService struct {
	students     studentSyncStore
	assets       assetRepository
	tasks        provisionTaskStore
	lms          lmsProvisioner
	audit        auditWriter
	logger       *zap.Logger
	accessExpiry time.Duration

	pool *jobs.Pool
}

// NewProvisioningService constructs the service and its worker pool. Call
// Start before dispatching work and Stop on shutdown.
func NewProvisioningService(
	students studentSyncStore,
	assets assetRepository,
	tasks provisionTaskStore,
	lms lmsProvisioner,
	audit auditWriter,
	logger *zap.Logger,
	workers, maxAttempts int,
	retryBackoff, accessExpiry time.Duration,
) *ProvisioningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if accessExpiry <= 0 {
		accessExpiry = 365 * 24 * time.Hour
	}
	s := &ProvisioningService{
		students:     students,
		assets:       assets,
		tasks:        tasks,
		lms:          lms,
		audit:        audit,
		logger:       logger,
		accessExpiry: accessExpiry,
	}
	s.pool = jobs.NewPool("provisioning", s.handle, jobs.Options{
		Workers:     workers,
		MaxAttempts: maxAttempts,
		Backoff:     retryBackoff,
		Logger:      logger,
	})
	return s
}

// Start launches the worker pool.
func (s *ProvisioningService) Start(ctx context.Context) {
	s.pool.Start(ctx)
}

// Stop drains the worker pool.
func (s *ProvisioningService) Stop() {
	s.pool.Stop()
}

// DispatchAll queues the learning-platform sync plus one task per
// auto-provision asset for a freshly enrolled student.
func (s *ProvisioningService) DispatchAll(ctx context.Context, student *models.Student) error {
	var errs []error

	if err := s.dispatch(ctx, student.ID, models.ProvisionKindLMS, nil); err != nil {
		errs = append(errs, fmt.Errorf("dispatch lms task: %w", err))
	}

	assets, err := s.assets.ListAutoProvision(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list auto-provision assets: %w", err))
	}
	for i := range assets {
		assetID := assets[i].ID
		if err := s.dispatch(ctx, student.ID, models.ProvisionKindITAsset, &assetID); err != nil {
			errs = append(errs, fmt.Errorf("dispatch asset task %s: %w", assetID, err))
		}
	}

	return errors.Join(errs...)
}

func (s *ProvisioningService) dispatch(ctx context.Context, studentID string, kind models.ProvisionTaskKind, assetID *string) error {
	task := &models.ProvisionTask{
		StudentID: studentID,
		Kind:      kind,
		AssetID:   assetID,
		Status:    models.ProvisionTaskQueued,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return err
	}

	payload := provisionPayload{TaskID: task.ID, StudentID: studentID, Kind: kind}
	if assetID != nil {
		payload.AssetID = *assetID
	}
	return s.pool.Submit(jobs.Task{ID: task.ID, Kind: string(kind), Payload: payload})
}

func (s *ProvisioningService) handle(ctx context.Context, task jobs.Task) error {
	payload, ok := task.Payload.(provisionPayload)
	if !ok {
		s.logger.Error("unexpected provisioning payload", zap.String("task_id", task.ID))
		return nil
	}

	if err := s.tasks.UpdateStatus(ctx, payload.TaskID, models.ProvisionTaskRunning, task.Attempt, nil, nil); err != nil {
		s.logger.Warn("failed to mark provision task running", zap.String("task_id", payload.TaskID), zap.Error(err))
	}

	var err error
	switch payload.Kind {
	case models.ProvisionKindLMS:
		err = s.provisionLMS(ctx, payload.StudentID)
	case models.ProvisionKindITAsset:
		err = s.provisionAsset(ctx, payload.StudentID, payload.AssetID)
	default:
		s.logger.Error("unknown provisioning kind", zap.String("kind", string(payload.Kind)))
		return nil
	}

	now := time.Now().UTC()
	if err != nil {
		msg := err.Error()
		if updErr := s.tasks.UpdateStatus(ctx, payload.TaskID, models.ProvisionTaskFailed, task.Attempt, &msg, &now); updErr != nil {
			s.logger.Warn("failed to mark provision task failed", zap.String("task_id", payload.TaskID), zap.Error(updErr))
		}
		return err
	}

	if updErr := s.tasks.UpdateStatus(ctx, payload.TaskID, models.ProvisionTaskSucceeded, task.Attempt, nil, &now); updErr != nil {
		s.logger.Warn("failed to mark provision task succeeded", zap.String("task_id", payload.TaskID), zap.Error(updErr))
	}
	return nil
}

func (s *ProvisioningService) provisionLMS(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return fmt.Errorf("load student: %w", err)
	}
	if student.LMSSyncStatus == models.LMSSyncDone {
		return nil
	}

	token, err := s.lms.Provision(ctx, student.StudentNo, student.InstitutionalEmail)
	if err != nil {
		if updErr := s.students.UpdateLMSSync(ctx, studentID, nil, models.LMSSyncFailed, nil); updErr != nil {
			s.logger.Warn("failed to record lms sync failure", zap.String("student_id", studentID), zap.Error(updErr))
		}
		return fmt.Errorf("provision lms account: %w", err)
	}

	now := time.Now().UTC()
	if err := s.students.UpdateLMSSync(ctx, studentID, &token, models.LMSSyncDone, &now); err != nil {
		return fmt.Errorf("record lms sync: %w", err)
	}

	s.recordAudit(ctx, models.AuditActionProvisionLMS, studentID, map[string]interface{}{"lms_sync_status": models.LMSSyncDone})
	return nil
}

func (s *ProvisioningService) provisionAsset(ctx context.Context, studentID, assetID string) error {
	exists, err := s.assets.AccessExists(ctx, studentID, assetID)
	if err != nil {
		return fmt.Errorf("check existing access: %w", err)
	}
	if exists {
		return nil
	}

	access := &models.ProvisionedAccess{
		StudentID:   studentID,
		AssetID:     assetID,
		Status:      models.AccessStatusActive,
		Credentials: uuid.NewString(),
		ExpiresAt:   time.Now().UTC().Add(s.accessExpiry),
	}
	if err := s.assets.CreateAccess(ctx, access); err != nil {
		return fmt.Errorf("create access grant: %w", err)
	}

	s.recordAudit(ctx, models.AuditActionProvisionAsset, studentID, map[string]interface{}{
		"asset_id": assetID, "access_id": access.ID, "expires_at": access.ExpiresAt,
	})
	return nil
}

// RetryAsset re-provisions one asset for a student on demand. Unlike the
// automatic path it overwrites any existing grant, so administrators can
// recover from failed or expired credentials.
func (s *ProvisioningService) RetryAsset(ctx context.Context, studentID, assetID, actorID string) (*models.ProvisionedAccess, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.assets.FindByID(ctx, assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}

	now := time.Now().UTC()
	task := &models.ProvisionTask{
		StudentID: studentID,
		Kind:      models.ProvisionKindITAsset,
		AssetID:   &assetID,
		Status:    models.ProvisionTaskRunning,
		Attempts:  1,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Warn("failed to record retry task", zap.String("student_id", studentID), zap.Error(err))
	}

	access := &models.ProvisionedAccess{
		StudentID:   studentID,
		AssetID:     assetID,
		Status:      models.AccessStatusActive,
		Credentials: uuid.NewString(),
		ExpiresAt:   now.Add(s.accessExpiry),
	}
	if err := s.assets.UpsertAccess(ctx, access); err != nil {
		msg := err.Error()
		if task.ID != "" {
			if updErr := s.tasks.UpdateStatus(ctx, task.ID, models.ProvisionTaskFailed, 1, &msg, &now); updErr != nil {
				s.logger.Warn("failed to mark retry task failed", zap.String("task_id", task.ID), zap.Error(updErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision asset")
	}
	if task.ID != "" {
		if updErr := s.tasks.UpdateStatus(ctx, task.ID, models.ProvisionTaskSucceeded, 1, nil, &now); updErr != nil {
			s.logger.Warn("failed to mark retry task succeeded", zap.String("task_id", task.ID), zap.Error(updErr))
		}
	}

	newValues, _ := json.Marshal(map[string]interface{}{"asset_id": assetID, "access_id": access.ID, "retried": true})
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionProvisionAsset,
		Resource:   "students",
		ResourceID: &studentID,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record retry audit log", zap.Error(err))
	}

	return access, nil
}

// Status returns the provisioning picture for a student.
func (s *ProvisioningService) Status(ctx context.Context, studentID string) (*ProvisioningStatus, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	tasks, err := s.tasks.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list provision tasks")
	}
	access, err := s.assets.ListAccessByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access grants")
	}

	return &ProvisioningStatus{
		LMSSyncStatus: student.LMSSyncStatus,
		Tasks:         tasks,
		Access:        access,
	}, nil
}

// recordAudit writes a provisioning audit entry attributed to the system.
func (s *ProvisioningService) recordAudit(ctx context.Context, action, studentID string, payload map[string]interface{}) {
	newValues, _ := json.Marshal(payload)
	if err := s.audit.Create(ctx, &models.AuditLog{
		Action:     action,
		Resource:   "students",
		ResourceID: &studentID,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record provisioning audit log", zap.Error(err))
	}
}
