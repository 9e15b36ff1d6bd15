package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

// AssetRepository handles IT assets and provisioned access grants.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindByID returns an asset by its ID.
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*models.ITAsset, error) {
	const query = `SELECT id, name, auto_provision, usage_count, created_at, updated_at FROM it_assets WHERE id = $1`
	var asset models.ITAsset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		return nil, err
	}
	return &asset, nil
}

// ListAutoProvision returns assets flagged for automatic provisioning.
func (r *AssetRepository) ListAutoProvision(ctx context.Context) ([]models.ITAsset, error) {
	const query = `SELECT id, name, auto_provision, usage_count, created_at, updated_at FROM it_assets WHERE auto_provision = TRUE ORDER BY name`
	var assets []models.ITAsset
	if err := r.db.SelectContext(ctx, &assets, query); err != nil {
		return nil, fmt.Errorf("list auto-provision assets: %w", err)
	}
	return assets, nil
}

// AccessExists reports whether the student already holds access to the asset.
func (r *AssetRepository) AccessExists(ctx context.Context, studentID, assetID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM provisioned_access WHERE student_id = $1 AND asset_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, assetID); err != nil {
		return false, fmt.Errorf("check provisioned access: %w", err)
	}
	return exists, nil
}

// ListAccessByStudent returns all access grants for a student.
func (r *AssetRepository) ListAccessByStudent(ctx context.Context, studentID string) ([]models.ProvisionedAccess, error) {
	const query = `SELECT id, student_id, asset_id, status, credentials, expires_at, created_at, updated_at
        FROM provisioned_access WHERE student_id = $1 ORDER BY created_at`
	var grants []models.ProvisionedAccess
	if err := r.db.SelectContext(ctx, &grants, query, studentID); err != nil {
		return nil, fmt.Errorf("list provisioned access: %w", err)
	}
	return grants, nil
}

// CreateAccess inserts a new access grant and bumps the asset usage counter.
func (r *AssetRepository) CreateAccess(ctx context.Context, access *models.ProvisionedAccess) error {
	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if access.CreatedAt.IsZero() {
		access.CreatedAt = now
	}
	access.UpdatedAt = now
	if access.Status == "" {
		access.Status = models.AccessStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin access tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO provisioned_access (id, student_id, asset_id, status, credentials, expires_at, created_at, updated_at)
        VALUES (:id, :student_id, :asset_id, :status, :credentials, :expires_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, access); err != nil {
		return fmt.Errorf("create provisioned access: %w", err)
	}

	const bump = `UPDATE it_assets SET usage_count = usage_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, access.AssetID, now); err != nil {
		return fmt.Errorf("increment asset usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit access tx: %w", err)
	}
	return nil
}

// UpsertAccess replaces or creates the grant for a (student, asset) pair.
// Used by the administrator retry override.
func (r *AssetRepository) UpsertAccess(ctx context.Context, access *models.ProvisionedAccess) error {
	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if access.CreatedAt.IsZero() {
		access.CreatedAt = now
	}
	access.UpdatedAt = now
	if access.Status == "" {
		access.Status = models.AccessStatusActive
	}
	const query = `INSERT INTO provisioned_access (id, student_id, asset_id, status, credentials, expires_at, created_at, updated_at)
        VALUES (:id, :student_id, :asset_id, :status, :credentials, :expires_at, :created_at, :updated_at)
        ON CONFLICT (student_id, asset_id) DO UPDATE
        SET status = EXCLUDED.status, credentials = EXCLUDED.credentials,
            expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, access); err != nil {
		return fmt.Errorf("upsert provisioned access: %w", err)
	}
	return nil
}
