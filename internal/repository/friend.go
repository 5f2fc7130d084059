package repository

import (
	"context"
	"errors"
	"time"

	"kinship/internal/models"
	"kinship/internal/policy"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendRepository handles friendship data persistence
type FriendRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Friendship, error)
	GetBetween(ctx context.Context, a, b uuid.UUID) (*models.Friendship, error)
	List(ctx context.Context, participant uuid.UUID, status models.FriendshipStatus) ([]*models.Friendship, error)
	ListFriends(ctx context.Context, id uuid.UUID) ([]*models.Profile, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.FriendshipStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

const pairSQL = "((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))"

func (r *friendRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	err := r.db.WithContext(ctx).Create(friendship).Error
	return translate(err, "Friendship", friendship.ID, "A friendship between these users already exists")
}

func (r *friendRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Friendship, error) {
	var friendship models.Friendship
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&friendship, "friendships.id = ?", id).Error
	if err != nil {
		return nil, translate(err, "Friendship", id, "")
	}
	return &friendship, nil
}

// GetBetween returns the row linking a and b in either direction, or nil.
func (r *friendRepository) GetBetween(ctx context.Context, a, b uuid.UUID) (*models.Friendship, error) {
	var friendship models.Friendship
	err := r.db.WithContext(ctx).Where(pairSQL, a, b, b, a).First(&friendship).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &friendship, nil
}

// List returns participant's friendships, optionally filtered by status.
func (r *friendRepository) List(ctx context.Context, participant uuid.UUID, status models.FriendshipStatus) ([]*models.Friendship, error) {
	var friendships []*models.Friendship
	q := r.db.WithContext(ctx).
		Scopes(policy.ParticipantFriendships(participant)).
		Preload("Sender").
		Preload("Receiver")
	if status != "" {
		q = q.Where("friendships.status = ?", status)
	}
	if err := q.Order("friendships.created_at DESC").Find(&friendships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return friendships, nil
}

func (r *friendRepository) ListFriends(ctx context.Context, id uuid.UUID) ([]*models.Profile, error) {
	var profiles []*models.Profile
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships ON (friendships.sender_id = profiles.id AND friendships.receiver_id = ?) OR (friendships.receiver_id = profiles.id AND friendships.sender_id = ?)", id, id).
		Where("friendships.status = ?", models.FriendshipStatusAccepted).
		Order("profiles.username ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *friendRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FriendshipStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Friendship", id)
	}
	return nil
}

func (r *friendRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Friendship{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Friendship", id)
	}
	return nil
}

// AreFriends reports whether an accepted friendship links a and b.
func (r *friendRepository) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("status = ?", models.FriendshipStatusAccepted).
		Where(pairSQL, a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
