package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

// ProvisionTaskRepository persists the provisioning task queue state.
type ProvisionTaskRepository struct {
	db *sqlx.DB
}

// NewProvisionTaskRepository constructs the repository.
func NewProvisionTaskRepository(db *sqlx.DB) *ProvisionTaskRepository {
	return &ProvisionTaskRepository{db: db}
}

// Create persists a newly queued task.
func (r *ProvisionTaskRepository) Create(ctx context.Context, task *models.ProvisionTask) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.ProvisionTaskQueued
	}
	const query = `INSERT INTO provision_tasks (id, student_id, kind, asset_id, status, attempts, last_error, created_at, updated_at, finished_at)
        VALUES (:id, :student_id, :kind, :asset_id, :status, :attempts, :last_error, :created_at, :updated_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create provision task: %w", err)
	}
	return nil
}

// UpdateStatus records a task's progress, attempt count and error.
func (r *ProvisionTaskRepository) UpdateStatus(ctx context.Context, id string, status models.ProvisionTaskStatus, attempts int, lastError *string, finishedAt *time.Time) error {
	const query = `UPDATE provision_tasks SET status = $2, attempts = $3, last_error = $4, finished_at = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, attempts, lastError, finishedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update provision task: %w", err)
	}
	return nil
}

// ListByStudent returns all tasks dispatched for a student.
func (r *ProvisionTaskRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ProvisionTask, error) {
	const query = `SELECT id, student_id, kind, asset_id, status, attempts, last_error, created_at, updated_at, finished_at
        FROM provision_tasks WHERE student_id = $1 ORDER BY created_at`
	var tasks []models.ProvisionTask
	if err := r.db.SelectContext(ctx, &tasks, query, studentID); err != nil {
		return nil, fmt.Errorf("list provision tasks: %w", err)
	}
	return tasks, nil
}
