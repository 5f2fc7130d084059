package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendshipStatus represents the status of a friendship request.
type FriendshipStatus string

const (
	// FriendshipStatusPending indicates a request awaiting the receiver's answer.
	FriendshipStatusPending FriendshipStatus = "pending"
	// FriendshipStatusAccepted indicates the two people are connected.
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	// FriendshipStatusRejected indicates a declined request or a dissolved connection.
	FriendshipStatusRejected FriendshipStatus = "rejected"
)

// Valid reports whether s is one of the enumerated statuses.
func (s FriendshipStatus) Valid() bool {
	switch s {
	case FriendshipStatusPending, FriendshipStatusAccepted, FriendshipStatusRejected:
		return true
	}
	return false
}

// Friendship is a directional request from Sender to Receiver.
// Once accepted it is symmetric for visibility purposes.
type Friendship struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:friendships_sender_id_receiver_id_key,priority:1" json:"sender_id"`
	ReceiverID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:friendships_sender_id_receiver_id_key,priority:2;index:friendships_receiver_id_idx;check:friendships_no_self_check,sender_id <> receiver_id" json:"receiver_id"`
	Status     FriendshipStatus `gorm:"type:varchar(16);not null;default:'pending';check:friendships_status_check,status IN ('pending','accepted','rejected')" json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`

	Sender   *Profile `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *Profile `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// BeforeCreate assigns an ID and starts every request as pending.
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = FriendshipStatusPending
	}
	return nil
}

// Involves reports whether id is the sender or the receiver.
func (f *Friendship) Involves(id uuid.UUID) bool {
	return f.SenderID == id || f.ReceiverID == id
}

// Other returns the participant that is not id.
func (f *Friendship) Other(id uuid.UUID) uuid.UUID {
	if f.SenderID == id {
		return f.ReceiverID
	}
	return f.SenderID
}
