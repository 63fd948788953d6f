package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role of a registry user
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleValidator Role = "validator"
	RoleAdmin     Role = "admin"
)

// User represents a registry account. Identity and authorization are
// established upstream; the core only reads role and verified flag.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Name      string         `gorm:"not null" json:"name"`
	Role      Role           `gorm:"not null;default:'developer'" json:"role"`
	Verified  bool           `gorm:"not null;default:false" json:"verified"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CanValidate reports whether the user may sit on a verification committee.
func (u *User) CanValidate() bool {
	return u.Verified && (u.Role == RoleValidator || u.Role == RoleAdmin)
}
