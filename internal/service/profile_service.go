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

type ProfileService struct {
	profileRepo repository.ProfileRepository
	policy      *policy.Engine
}

// UpdateProfileInput carries the fields to change; nil leaves a field as is.
type UpdateProfileInput struct {
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
}

func NewProfileService(profileRepo repository.ProfileRepository, engine *policy.Engine) *ProfileService {
	return &ProfileService{profileRepo: profileRepo, policy: engine}
}

// GetProfile returns any profile; profiles are readable by everyone.
func (s *ProfileService) GetProfile(ctx context.Context, requester, id uuid.UUID) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeRead(ctx, policy.Profiles, requester, id, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile validates every supplied field before touching the database.
func (s *ProfileService) UpdateProfile(ctx context.Context, requester, id uuid.UUID, in UpdateProfileInput) (*models.Profile, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}

	if in.Username != nil {
		*in.Username = strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(*in.Username); err != nil {
			return nil, invalid(err)
		}
	}
	if in.FullName != nil {
		*in.FullName = strings.TrimSpace(*in.FullName)
		if err := validation.ValidateFullName(*in.FullName); err != nil {
			return nil, invalid(err)
		}
	}
	if in.AvatarURL != nil {
		*in.AvatarURL = strings.TrimSpace(*in.AvatarURL)
		if err := validation.ValidateURL("avatar_url", *in.AvatarURL); err != nil {
			return nil, invalid(err)
		}
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, invalid(err)
		}
	}

	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, policy.Profiles, policy.Update, requester, profile); err != nil {
		return nil, err
	}

	if in.Username != nil {
		profile.Username = *in.Username
	}
	if in.FullName != nil {
		profile.FullName = *in.FullName
	}
	if in.AvatarURL != nil {
		profile.AvatarURL = *in.AvatarURL
	}
	if in.Bio != nil {
		profile.Bio = *in.Bio
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
