package models

import "time"

// DegreeLevel classifies programs for tuition computation.
type DegreeLevel string

// Supported degree levels.
const (
	DegreeBachelor  DegreeLevel = "BACHELOR"
	DegreeMaster    DegreeLevel = "MASTER"
	DegreeDoctorate DegreeLevel = "DOCTORATE"
)

// Program is an academic program applicants apply to.
type Program struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	School        string      `db:"school" json:"school"`
	DegreeLevel   DegreeLevel `db:"degree_level" json:"degree_level"`
	DurationYears int         `db:"duration_years" json:"duration_years"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}
