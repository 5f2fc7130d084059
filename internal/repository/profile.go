package repository

import (
	"context"
	"time"

	"kinship/internal/cache"
	"kinship/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db    *gorm.DB
	cache *cache.JSONCache
}

// NewProfileRepository creates a profile repository. c may be nil.
func NewProfileRepository(db *gorm.DB, c *cache.JSONCache) ProfileRepository {
	return &profileRepository{db: db, cache: c}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	err := r.db.WithContext(ctx).Create(profile).Error
	return translate(err, "Profile", profile.ID, "Username is already taken")
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.cache.Aside(ctx, cache.ProfileKey(id), &profile, cache.ProfileTTL, func() error {
		return r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err, "Profile", id, "")
	}
	return &profile, nil
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		return nil, translate(err, "Profile", username, "")
	}
	return &profile, nil
}

// Update writes the mutable columns only; id and created_at never change.
func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", profile.ID).
		Select("username", "full_name", "avatar_url", "bio", "updated_at").
		Updates(profile)
	if err := translate(res.Error, "Profile", profile.ID, "Username is already taken"); err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", profile.ID)
	}
	r.cache.Invalidate(ctx, cache.ProfileKey(profile.ID))
	return nil
}
