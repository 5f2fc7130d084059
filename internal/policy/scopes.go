package policy

import (
	"kinship/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const visiblePostsSQL = `(posts.privacy = ? OR posts.user_id = ? OR (posts.privacy = ? AND EXISTS (
	SELECT 1 FROM friendships f
	WHERE f.status = ?
	AND ((f.sender_id = ? AND f.receiver_id = posts.user_id) OR (f.receiver_id = ? AND f.sender_id = posts.user_id))
)))`

// VisiblePosts restricts a posts query to rows the requester may select.
func VisiblePosts(requester uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if requester == Anonymous {
			return db.Where("posts.privacy = ?", models.PrivacyPublic)
		}
		return db.Where(visiblePostsSQL,
			models.PrivacyPublic, requester,
			models.PrivacyFriends, models.FriendshipStatusAccepted,
			requester, requester,
		)
	}
}

// ParticipantFriendships restricts a friendships query to rows involving requester.
func ParticipantFriendships(requester uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if requester == Anonymous {
			return db.Where("1 = 0")
		}
		return db.Where("(friendships.sender_id = ? OR friendships.receiver_id = ?)", requester, requester)
	}
}
