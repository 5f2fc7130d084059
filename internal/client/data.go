package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kinship/internal/models"
	"kinship/internal/validation"

	"github.com/google/uuid"
)

// ProfileUpdate carries the fields to change; nil leaves a field as is.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

func (u ProfileUpdate) validate() error {
	if u.Username != nil {
		if err := validation.ValidateUsername(strings.TrimSpace(*u.Username)); err != nil {
			return validationError(err)
		}
	}
	if u.FullName != nil {
		if err := validation.ValidateFullName(*u.FullName); err != nil {
			return validationError(err)
		}
	}
	if u.AvatarURL != nil && *u.AvatarURL != "" {
		if err := validation.ValidateURL("avatar_url", *u.AvatarURL); err != nil {
			return validationError(err)
		}
	}
	if u.Bio != nil {
		if err := validation.ValidateBio(*u.Bio); err != nil {
			return validationError(err)
		}
	}
	return nil
}

// NewPost is the body of CreatePost. An empty Privacy means public.
type NewPost struct {
	Content  string         `json:"content"`
	ImageURL string         `json:"image_url,omitempty"`
	Privacy  models.Privacy `json:"privacy,omitempty"`
}

func page(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

// Feed returns posts visible to the session, newest first. Signed-out
// sessions see public posts only.
func (s *Session) Feed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := s.client.do(ctx, http.MethodGet, "/api/posts", page(limit, offset), s.Token(), nil, &posts)
	return posts, err
}

func (s *Session) CreatePost(ctx context.Context, p NewPost) (*models.Post, error) {
	if err := validation.ValidatePostContent(p.Content); err != nil {
		return nil, validationError(err)
	}
	if p.Privacy != "" && !p.Privacy.Valid() {
		return nil, &Error{Code: models.CodeValidation, Message: "privacy must be public, friends or private"}
	}
	if p.ImageURL != "" {
		if err := validation.ValidateURL("image_url", p.ImageURL); err != nil {
			return nil, validationError(err)
		}
	}
	var post models.Post
	if err := s.call(ctx, http.MethodPost, "/api/posts", nil, p, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Session) DeletePost(ctx context.Context, id uuid.UUID) error {
	return s.call(ctx, http.MethodDelete, "/api/posts/"+id.String(), nil, nil, nil)
}

// MyProfile fetches the signed-in profile and refreshes the cached copy.
func (s *Session) MyProfile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := s.call(ctx, http.MethodGet, "/api/profiles/me", nil, nil, &p); err != nil {
		return nil, err
	}
	s.setProfile(&p)
	return &p, nil
}

func (s *Session) UpdateProfile(ctx context.Context, u ProfileUpdate) (*models.Profile, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	var p models.Profile
	if err := s.call(ctx, http.MethodPut, "/api/profiles/me", nil, u, &p); err != nil {
		return nil, err
	}
	s.setProfile(&p)
	return &p, nil
}

func (s *Session) setProfile(p *models.Profile) {
	cp := *p
	s.mu.Lock()
	if s.state == StateSignedIn {
		s.profile = &cp
	}
	s.mu.Unlock()
}

// Friends lists accepted friends of the session's profile.
func (s *Session) Friends(ctx context.Context) ([]models.Profile, error) {
	var friends []models.Profile
	err := s.call(ctx, http.MethodGet, "/api/friends", nil, nil, &friends)
	return friends, err
}

// Friendships lists friendships involving the session, optionally filtered by status.
func (s *Session) Friendships(ctx context.Context, status models.FriendshipStatus) ([]models.Friendship, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {string(status)}}
	}
	var out []models.Friendship
	err := s.call(ctx, http.MethodGet, "/api/friendships", q, nil, &out)
	return out, err
}

func (s *Session) SendFriendRequest(ctx context.Context, receiver uuid.UUID) (*models.Friendship, error) {
	var f models.Friendship
	body := map[string]uuid.UUID{"receiver_id": receiver}
	if err := s.call(ctx, http.MethodPost, "/api/friendships", nil, body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// RespondFriendRequest moves a friendship to status, e.g. accepted or rejected.
func (s *Session) RespondFriendRequest(ctx context.Context, id uuid.UUID, status models.FriendshipStatus) (*models.Friendship, error) {
	if !status.Valid() {
		return nil, &Error{Code: models.CodeValidation, Message: "invalid friendship status"}
	}
	var f models.Friendship
	body := map[string]models.FriendshipStatus{"status": status}
	if err := s.call(ctx, http.MethodPatch, "/api/friendships/"+id.String(), nil, body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
