package models

import "time"

// AccessStatus represents the state of a provisioned access grant.
type AccessStatus string

// Possible access statuses.
const (
	AccessStatusActive      AccessStatus = "ACTIVE"
	AccessStatusPending     AccessStatus = "PENDING"
	AccessStatusDeactivated AccessStatus = "DEACTIVATED"
)

// ITAsset is a provisionable institutional resource (VPN, library, labs).
type ITAsset struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	AutoProvision bool      `db:"auto_provision" json:"auto_provision"`
	UsageCount    int       `db:"usage_count" json:"usage_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ProvisionedAccess is one grant per (student, asset) pair. Its lifecycle is
// independent of the Student beyond referencing it.
type ProvisionedAccess struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	AssetID     string       `db:"asset_id" json:"asset_id"`
	Status      AccessStatus `db:"status" json:"status"`
	Credentials string       `db:"credentials" json:"-"`
	ExpiresAt   time.Time    `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// ProvisionTaskKind distinguishes downstream provisioning actions.
type ProvisionTaskKind string

// Kinds of provisioning tasks.
const (
	ProvisionKindLMS     ProvisionTaskKind = "LMS"
	ProvisionKindITAsset ProvisionTaskKind = "IT_ASSET"
)

// ProvisionTaskStatus tracks a task through the dispatcher.
type ProvisionTaskStatus string

// Task states. FAILED tasks are retryable by an administrator.
const (
	ProvisionTaskQueued    ProvisionTaskStatus = "QUEUED"
	ProvisionTaskRunning   ProvisionTaskStatus = "RUNNING"
	ProvisionTaskSucceeded ProvisionTaskStatus = "SUCCEEDED"
	ProvisionTaskFailed    ProvisionTaskStatus = "FAILED"
)

// ProvisionTask is the inspectable record of one downstream provisioning
// action, so reconciliation and retry are first-class operations.
type ProvisionTask struct {
	ID         string              `db:"id" json:"id"`
	StudentID  string              `db:"student_id" json:"student_id"`
	Kind       ProvisionTaskKind   `db:"kind" json:"kind"`
	AssetID    *string             `db:"asset_id" json:"asset_id,omitempty"`
	Status     ProvisionTaskStatus `db:"status" json:"status"`
	Attempts   int                 `db:"attempts" json:"attempts"`
	LastError  *string             `db:"last_error" json:"last_error,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
	FinishedAt *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
}
