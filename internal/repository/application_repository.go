package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

// ApplicationRepository handles persistence of admission applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
LEFT JOIN programs p ON p.id = a.program_id`
	var conditions []string
	var args []interface{}

	if filter.ApplicantUserID != "" {
		conditions = append(conditions, fmt.Sprintf("a.applicant_user_id = $%d", len(args)+1))
		args = append(args, filter.ApplicantUserID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "a.created_at",
		"status":     "a.status",
		"last_name":  "a.last_name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.applicant_user_id, a.program_id, a.status, a.first_name, a.last_name,
        a.birth_date, a.passport_no, a.admission_letter_generated, a.receipt_generated, a.created_at, a.updated_at,
        p.name AS program_name, p.school, p.degree_level
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, applicant_user_id, program_id, status, first_name, last_name, birth_date, passport_no,
        admission_letter_generated, receipt_generated, created_at, updated_at FROM applications WHERE id = $1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// FindDetailByID returns an application with program context.
func (r *ApplicationRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	const query = `SELECT a.id, a.applicant_user_id, a.program_id, a.status, a.first_name, a.last_name,
        a.birth_date, a.passport_no, a.admission_letter_generated, a.receipt_generated, a.created_at, a.updated_at,
        p.name AS program_name, p.school, p.degree_level
        FROM applications a
        LEFT JOIN programs p ON p.id = a.program_id
        WHERE a.id = $1`
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new application record.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if application.CreatedAt.IsZero() {
		application.CreatedAt = now
	}
	application.UpdatedAt = now
	if application.Status == "" {
		application.Status = models.ApplicationStatusSubmitted
	}
	const query = `INSERT INTO applications (id, applicant_user_id, program_id, status, first_name, last_name,
        birth_date, passport_no, admission_letter_generated, receipt_generated, created_at, updated_at)
        VALUES (:id, :applicant_user_id, :program_id, :status, :first_name, :last_name,
        :birth_date, :passport_no, :admission_letter_generated, :receipt_generated, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatusIf performs a compare-and-swap on the application status. It
// returns the number of rows affected; zero means the expected status no
// longer holds and the caller must map that to a conflict.
func (r *ApplicationRepository) UpdateStatusIf(ctx context.Context, id string, expected, next models.ApplicationStatus) (int64, error) {
	const query = `UPDATE applications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, expected, next, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update application status: %w", err)
	}
	return affected, nil
}

// ForceStatus sets the status unconditionally. Used only by the idempotency
// repair path when a student record exists but the status update never landed.
func (r *ApplicationRepository) ForceStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("force application status: %w", err)
	}
	return nil
}

// SetDocumentFlags records which official documents have been generated.
func (r *ApplicationRepository) SetDocumentFlags(ctx context.Context, id string, admissionLetter, receipt bool) error {
	const query = `UPDATE applications SET admission_letter_generated = $2, receipt_generated = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, admissionLetter, receipt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set document flags: %w", err)
	}
	return nil
}
