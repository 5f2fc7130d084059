package policy

import (
	"context"
	"fmt"

	"kinship/internal/models"

	"github.com/google/uuid"
)

func allowAll(context.Context, Relations, uuid.UUID, any) (bool, error) {
	return true, nil
}

func profileSelf(_ context.Context, _ Relations, subject uuid.UUID, row any) (bool, error) {
	p, ok := row.(*models.Profile)
	if !ok {
		return false, fmt.Errorf("unexpected row type %T", row)
	}
	return subject != Anonymous && p.ID == subject, nil
}

func postOwner(_ context.Context, _ Relations, subject uuid.UUID, row any) (bool, error) {
	p, ok := row.(*models.Post)
	if !ok {
		return false, fmt.Errorf("unexpected row type %T", row)
	}
	return subject != Anonymous && p.UserID == subject, nil
}

func postVisible(ctx context.Context, rel Relations, subject uuid.UUID, row any) (bool, error) {
	p, ok := row.(*models.Post)
	if !ok {
		return false, fmt.Errorf("unexpected row type %T", row)
	}
	switch {
	case p.Privacy == models.PrivacyPublic:
		return true, nil
	case subject == Anonymous:
		return false, nil
	case p.UserID == subject:
		return true, nil
	case p.Privacy == models.PrivacyFriends:
		return rel.AreFriends(ctx, subject, p.UserID)
	default:
		return false, nil
	}
}

func friendshipParticipant(_ context.Context, _ Relations, subject uuid.UUID, row any) (bool, error) {
	f, ok := row.(*models.Friendship)
	if !ok {
		return false, fmt.Errorf("unexpected row type %T", row)
	}
	return subject != Anonymous && f.Involves(subject), nil
}

func friendshipSender(_ context.Context, _ Relations, subject uuid.UUID, row any) (bool, error) {
	f, ok := row.(*models.Friendship)
	if !ok {
		return false, fmt.Errorf("unexpected row type %T", row)
	}
	return subject != Anonymous && f.SenderID == subject, nil
}

// friendshipStatusChange lets a participant change the status and nothing else.
func friendshipStatusChange(_ context.Context, _ Relations, subject uuid.UUID, row any) (bool, error) {
	change, ok := row.(FriendshipChange)
	if !ok {
		return false, fmt.Errorf("unexpected row type %T", row)
	}
	cur, next := change.Current, change.Proposed
	if cur == nil || next == nil {
		return false, nil
	}
	if subject == Anonymous || !cur.Involves(subject) {
		return false, nil
	}
	return cur.ID == next.ID && cur.SenderID == next.SenderID && cur.ReceiverID == next.ReceiverID, nil
}
