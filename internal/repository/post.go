package repository

import (
	"context"
	"time"

	"kinship/internal/models"
	"kinship/internal/policy"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations.
// List methods only ever return rows the requester may select.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListVisible(ctx context.Context, requester uuid.UUID, limit, offset int) ([]*models.Post, error)
	ListByOwnerVisible(ctx context.Context, owner, requester uuid.UUID, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads a post without any visibility filter. Callers authorize the row.
func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Preload("Author").First(&post, "posts.id = ?", id).Error
	if err != nil {
		return nil, translate(err, "Post", id, "")
	}
	return &post, nil
}

func (r *postRepository) ListVisible(ctx context.Context, requester uuid.UUID, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.feed(ctx, requester).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByOwnerVisible(ctx context.Context, owner, requester uuid.UUID, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.feed(ctx, requester).
		Where("posts.user_id = ?", owner).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) feed(ctx context.Context, requester uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Scopes(policy.VisiblePosts(requester)).
		Preload("Author").
		Order("posts.created_at DESC").
		Order("posts.id DESC")
}

// Update writes content, image and privacy. Ownership is never reassigned.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Select("content", "image_url", "privacy", "updated_at").
		Updates(post)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
