package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Privacy controls who may read a post.
type Privacy string

const (
	// PrivacyPublic posts are visible to everyone.
	PrivacyPublic Privacy = "public"
	// PrivacyFriends posts are visible to the owner and accepted friends.
	PrivacyFriends Privacy = "friends"
	// PrivacyPrivate posts are visible to the owner only.
	PrivacyPrivate Privacy = "private"
)

// Valid reports whether p is one of the enumerated privacy levels.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyFriends, PrivacyPrivate:
		return true
	}
	return false
}

// Post represents a post in the Kinship feed.
type Post struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:posts_user_id_idx" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ImageURL  string    `json:"image_url"`
	Privacy   Privacy   `gorm:"type:varchar(16);not null;default:'public';check:posts_privacy_check,privacy IN ('public','friends','private')" json:"privacy"`
	CreatedAt time.Time `gorm:"index:posts_created_at_idx" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Author is loaded for feed rendering.
	Author *Profile `gorm:"foreignKey:UserID" json:"author,omitempty"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns an ID and the default privacy.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Privacy == "" {
		p.Privacy = PrivacyPublic
	}
	return nil
}
