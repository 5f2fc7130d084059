package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public, application-level record of a person.
// ID always equals the owning Account's ID.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex:profiles_username_key" json:"username"`
	FullName  string    `gorm:"size:100" json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `gorm:"type:text" json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Profile) TableName() string {
	return "profiles"
}
