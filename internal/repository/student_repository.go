package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

// ErrStatusConflict is returned when a compare-and-swap status update inside
// a transactional workflow touched zero rows.
var ErrStatusConflict = errors.New("status changed concurrently")

// StudentRepository handles persistence of enrolled students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, application_id, student_no, institutional_email, enrollment_status, program_id,
        start_date, expected_graduation_date, lms_sync_token, lms_sync_status, lms_synced_at, created_at, updated_at`

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByApplicationID returns the student created for an application.
func (r *StudentRepository) FindByApplicationID(ctx context.Context, applicationID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE application_id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, applicationID); err != nil {
		return nil, err
	}
	return &student, nil
}

// EmailExists reports whether an institutional email is already taken.
func (r *StudentRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM students WHERE institutional_email = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check institutional email: %w", err)
	}
	return exists, nil
}

// CreateEnrolled inserts the student and advances the application to ENROLLED
// as one transaction. The student insert and the status update form the
// enrollment commit unit: if the application status no longer matches
// fromStatus the transaction rolls back with ErrStatusConflict.
func (r *StudentRepository) CreateEnrolled(ctx context.Context, student *models.Student, fromStatus models.ApplicationStatus) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	if student.EnrollmentStatus == "" {
		student.EnrollmentStatus = models.EnrollmentStatusActive
	}
	if student.LMSSyncStatus == "" {
		student.LMSSyncStatus = models.LMSSyncPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO students (id, application_id, student_no, institutional_email, enrollment_status,
        program_id, start_date, expected_graduation_date, lms_sync_token, lms_sync_status, lms_synced_at, created_at, updated_at)
        VALUES (:id, :application_id, :student_no, :institutional_email, :enrollment_status,
        :program_id, :start_date, :expected_graduation_date, :lms_sync_token, :lms_sync_status, :lms_synced_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	const advance = `UPDATE applications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := tx.ExecContext(ctx, advance, student.ApplicationID, fromStatus, models.ApplicationStatusEnrolled, now)
	if err != nil {
		return fmt.Errorf("advance application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance application status: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// UpdateLMSSync stores the learning-platform sync outcome on the student.
func (r *StudentRepository) UpdateLMSSync(ctx context.Context, id string, token *string, status models.LMSSyncStatus, syncedAt *time.Time) error {
	const query = `UPDATE students SET lms_sync_token = $2, lms_sync_status = $3, lms_synced_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, status, syncedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lms sync: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether the error is a Postgres unique-constraint
// violation, optionally narrowed to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
