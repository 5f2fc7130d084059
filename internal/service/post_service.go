package service

import (
	"context"
	"strings"

	"kinship/internal/models"
	"kinship/internal/policy"
	"kinship/internal/repository"
	"kinship/internal/validation"

	"github.com/google/uuid"
)

type PostService struct {
	postRepo    repository.PostRepository
	profileRepo repository.ProfileRepository
	policy      *policy.Engine
}

type CreatePostInput struct {
	Content  string         `json:"content"`
	ImageURL string         `json:"image_url"`
	Privacy  models.Privacy `json:"privacy"`
}

// UpdatePostInput carries the fields to change; nil leaves a field as is.
type UpdatePostInput struct {
	Content  *string         `json:"content"`
	ImageURL *string         `json:"image_url"`
	Privacy  *models.Privacy `json:"privacy"`
}

type ListPostsInput struct {
	Requester uuid.UUID
	// Owner restricts the list to one profile when set.
	Owner  uuid.UUID
	Limit  int
	Offset int
}

func NewPostService(postRepo repository.PostRepository, profileRepo repository.ProfileRepository, engine *policy.Engine) *PostService {
	return &PostService{postRepo: postRepo, profileRepo: profileRepo, policy: engine}
}

// ListPosts returns the newest posts the requester may see.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	if in.Owner == uuid.Nil {
		return s.postRepo.ListVisible(ctx, in.Requester, in.Limit, in.Offset)
	}
	if _, err := s.profileRepo.GetByID(ctx, in.Owner); err != nil {
		return nil, err
	}
	return s.postRepo.ListByOwnerVisible(ctx, in.Owner, in.Requester, in.Limit, in.Offset)
}

// GetPost hides posts the requester may not read behind NOT_FOUND.
func (s *PostService) GetPost(ctx context.Context, requester, id uuid.UUID) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeRead(ctx, policy.Posts, requester, id, post); err != nil {
		return nil, err
	}
	return post, nil
}

func validatePostFields(content, imageURL string, privacy models.Privacy) error {
	if err := validation.ValidatePostContent(content); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateURL("image_url", imageURL); err != nil {
		return invalid(err)
	}
	if !privacy.Valid() {
		return models.NewValidationError("Privacy must be one of public, friends or private")
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, requester uuid.UUID, in CreatePostInput) (*models.Post, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	if in.Privacy == "" {
		in.Privacy = models.PrivacyPublic
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validatePostFields(in.Content, in.ImageURL, in.Privacy); err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:   requester,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		Privacy:  in.Privacy,
	}
	if err := s.policy.Authorize(ctx, policy.Posts, policy.Insert, requester, post); err != nil {
		return nil, err
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) UpdatePost(ctx context.Context, requester, id uuid.UUID, in UpdatePostInput) (*models.Post, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	post, err := s.GetPost(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, policy.Posts, policy.Update, requester, post); err != nil {
		return nil, err
	}

	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.ImageURL != nil {
		post.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.Privacy != nil {
		post.Privacy = *in.Privacy
	}
	if err := validatePostFields(post.Content, post.ImageURL, post.Privacy); err != nil {
		return nil, err
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, requester, id uuid.UUID) error {
	if err := requireMember(requester); err != nil {
		return err
	}
	post, err := s.GetPost(ctx, requester, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, policy.Posts, policy.Delete, requester, post); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, id)
}
