package service

import (
	"context"

	"kinship/internal/models"
	"kinship/internal/notifications"
	"kinship/internal/policy"
	"kinship/internal/repository"

	"github.com/google/uuid"
)

// FriendService provides friend-request and friendship business logic.
type FriendService struct {
	friendRepo  repository.FriendRepository
	profileRepo repository.ProfileRepository
	policy      *policy.Engine
	events      Publisher
}

// NewFriendService returns a new FriendService. events may be nil.
func NewFriendService(friendRepo repository.FriendRepository, profileRepo repository.ProfileRepository, engine *policy.Engine, events Publisher) *FriendService {
	return &FriendService{
		friendRepo:  friendRepo,
		profileRepo: profileRepo,
		policy:      engine,
		events:      events,
	}
}

// friendshipEvent is the payload of friendship notifications.
type friendshipEvent struct {
	FriendshipID uuid.UUID               `json:"friendship_id"`
	SenderID     uuid.UUID               `json:"sender_id"`
	ReceiverID   uuid.UUID               `json:"receiver_id"`
	Status       models.FriendshipStatus `json:"status"`
}

func eventFor(f *models.Friendship) friendshipEvent {
	return friendshipEvent{FriendshipID: f.ID, SenderID: f.SenderID, ReceiverID: f.ReceiverID, Status: f.Status}
}

// SendFriendRequest creates a pending request from requester to receiverID.
// A previously rejected pair may start over.
func (s *FriendService) SendFriendRequest(ctx context.Context, requester, receiverID uuid.UUID) (*models.Friendship, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	if requester == receiverID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}
	if _, err := s.profileRepo.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	existing, err := s.friendRepo.GetBetween(ctx, requester, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.FriendshipStatusAccepted:
			return nil, models.NewConflictError("You are already friends")
		case models.FriendshipStatusPending:
			if existing.SenderID == requester {
				return nil, models.NewConflictError("Friend request already sent")
			}
			return nil, models.NewConflictError("You already have a pending friend request from this user")
		case models.FriendshipStatusRejected:
			if err := s.policy.Authorize(ctx, policy.Friendships, policy.Delete, requester, existing); err != nil {
				return nil, err
			}
			if err := s.friendRepo.Delete(ctx, existing.ID); err != nil {
				return nil, err
			}
		}
	}

	friendship := &models.Friendship{
		SenderID:   requester,
		ReceiverID: receiverID,
		Status:     models.FriendshipStatusPending,
	}
	if err := s.policy.Authorize(ctx, policy.Friendships, policy.Insert, requester, friendship); err != nil {
		return nil, err
	}
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}

	publish(ctx, s.events, receiverID, notifications.EventFriendshipRequested, eventFor(friendship))
	return s.friendRepo.GetByID(ctx, friendship.ID)
}

// GetFriendship returns a friendship the requester takes part in.
func (s *FriendService) GetFriendship(ctx context.Context, requester, id uuid.UUID) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeRead(ctx, policy.Friendships, requester, id, friendship); err != nil {
		return nil, err
	}
	return friendship, nil
}

// FriendshipWith returns the row between requester and other, or nil.
func (s *FriendService) FriendshipWith(ctx context.Context, requester, other uuid.UUID) (*models.Friendship, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	if requester == other {
		return nil, nil
	}
	return s.friendRepo.GetBetween(ctx, requester, other)
}

// ListFriendships lists the requester's friendships, optionally by status.
func (s *FriendService) ListFriendships(ctx context.Context, requester uuid.UUID, status models.FriendshipStatus) ([]*models.Friendship, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("Status must be one of pending, accepted or rejected")
	}
	return s.friendRepo.List(ctx, requester, status)
}

// GetFriends lists the profiles connected to the requester.
func (s *FriendService) GetFriends(ctx context.Context, requester uuid.UUID) ([]*models.Profile, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	return s.friendRepo.ListFriends(ctx, requester)
}

// UpdateStatus moves a friendship along pending -> accepted | rejected and
// accepted -> rejected. Only the receiver may accept.
func (s *FriendService) UpdateStatus(ctx context.Context, requester, id uuid.UUID, status models.FriendshipStatus) (*models.Friendship, error) {
	if err := requireMember(requester); err != nil {
		return nil, err
	}
	if status != models.FriendshipStatusAccepted && status != models.FriendshipStatusRejected {
		return nil, models.NewValidationError("Status must be accepted or rejected")
	}

	current, err := s.GetFriendship(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	proposed := *current
	proposed.Status = status
	if err := s.policy.Authorize(ctx, policy.Friendships, policy.Update, requester,
		policy.FriendshipChange{Current: current, Proposed: &proposed}); err != nil {
		return nil, err
	}

	if current.Status == status {
		return current, nil
	}
	switch {
	case current.Status == models.FriendshipStatusRejected:
		return nil, models.NewConflictError("This friend request was already declined")
	case status == models.FriendshipStatusAccepted && current.ReceiverID != requester:
		return nil, models.NewForbiddenError("Only the recipient can accept a friend request")
	}

	if err := s.friendRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	current.Status = status

	publish(ctx, s.events, current.Other(requester), notifications.EventFriendshipUpdated, eventFor(current))
	return current, nil
}

// RemoveFriendship deletes the row; either participant may do it.
func (s *FriendService) RemoveFriendship(ctx context.Context, requester, id uuid.UUID) error {
	if err := requireMember(requester); err != nil {
		return err
	}
	friendship, err := s.GetFriendship(ctx, requester, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, policy.Friendships, policy.Delete, requester, friendship); err != nil {
		return err
	}
	if err := s.friendRepo.Delete(ctx, id); err != nil {
		return err
	}

	friendship.Status = models.FriendshipStatusRejected
	publish(ctx, s.events, friendship.Other(requester), notifications.EventFriendshipUpdated, eventFor(friendship))
	return nil
}
