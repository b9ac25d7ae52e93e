package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// User is owned by the auth/profile subsystem. The messaging core only reads
// the identifier plus the display fields it caches alongside messages and
// conversation summaries.
type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `json:"name"`
	Username string `gorm:"uniqueIndex" json:"username"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Password string `json:"-"`
	Avatar   string `json:"avatar"`

	Role Role `gorm:"type:text;default:'BUYER'" json:"role"`
}
