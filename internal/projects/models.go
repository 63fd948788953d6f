package projects

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project statuses
const (
	StatusDraft       = "DRAFT"
	StatusSubmitted   = "SUBMITTED"
	StatusUnderReview = "UNDER_REVIEW"
	StatusVerified    = "VERIFIED"
	StatusActive      = "ACTIVE"
	StatusCompleted   = "COMPLETED"
	StatusRejected    = "REJECTED"
	StatusSuspended   = "SUSPENDED"
)

// Project represents a carbon project
type Project struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name            string         `gorm:"not null" json:"name"`
	Description     string         `json:"description"`
	Status          string         `gorm:"not null;default:'DRAFT'" json:"status"`
	DeveloperID     uuid.UUID      `gorm:"type:uuid;not null" json:"developer_id"`
	EmissionsTarget float64        `json:"emissions_target"` // tonnes CO2e, becomes issued credit quantity
	Sequence        int            `gorm:"autoIncrement;uniqueIndex" json:"sequence"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}
