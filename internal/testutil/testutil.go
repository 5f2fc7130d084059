// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"kinship/internal/database"
	"kinship/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewRedis starts a miniredis instance and a client pointed at it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// CreateMember inserts a confirmed account and its profile.
func CreateMember(t *testing.T, db *gorm.DB, username string) *models.Profile {
	t.Helper()

	now := time.Now()
	account := &models.Account{
		Email:            username + "@example.com",
		PasswordHash:     "x",
		EmailConfirmedAt: &now,
	}
	require.NoError(t, db.Create(account).Error)

	profile := &models.Profile{ID: account.ID, Username: username}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// CreatePost inserts a post owned by owner.
func CreatePost(t *testing.T, db *gorm.DB, owner uuid.UUID, privacy models.Privacy, content string) *models.Post {
	t.Helper()
	post := &models.Post{UserID: owner, Content: content, Privacy: privacy}
	require.NoError(t, db.Create(post).Error)
	return post
}

// Befriend inserts a friendship row with the given status.
func Befriend(t *testing.T, db *gorm.DB, sender, receiver uuid.UUID, status models.FriendshipStatus) *models.Friendship {
	t.Helper()
	f := &models.Friendship{SenderID: sender, ReceiverID: receiver, Status: status}
	require.NoError(t, db.Create(f).Error)
	return f
}
