// Package seed creates demo members, posts and friendships for development
// databases. It is not used by the server at runtime.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"kinship/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded member signs in with.
const DefaultPassword = "Kinship#2026"

// Factory builds domain entities and persists them.
type Factory struct {
	db           *gorm.DB
	rng          *rand.Rand
	passwordHash string
	maxDays      int
}

// NewFactory hashes the shared password once up front. With skipBcrypt the
// stored hash is a placeholder and seeded members cannot sign in.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	f := &Factory{
		db:      db,
		rng:     rand.New(rand.NewSource(opts.RandSeed)), // #nosec G404: acceptable for seeding
		maxDays: opts.MaxDays,
	}
	gofakeit.Seed(opts.RandSeed)
	if f.maxDays <= 0 {
		f.maxDays = 90
	}

	if opts.SkipBcrypt {
		f.passwordHash = "seeded"
		return f, nil
	}
	password := opts.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	f.passwordHash = string(hash)
	return f, nil
}

// MemberSpec pins some fields of a generated member; empty fields are faked.
type MemberSpec struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Bio      string `yaml:"bio"`
}

// CreateMember inserts a confirmed account and its profile.
func (f *Factory) CreateMember(spec MemberSpec) (*models.Profile, error) {
	if spec.Username == "" {
		spec.Username = strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
	}
	if spec.Email == "" {
		spec.Email = spec.Username + "@example.com"
	}
	if spec.FullName == "" {
		spec.FullName = gofakeit.Name()
	}
	if spec.Bio == "" {
		spec.Bio = gofakeit.Sentence(10)
	}

	id := uuid.New()
	now := time.Now()
	profile := &models.Profile{
		ID:        id,
		Username:  spec.Username,
		FullName:  spec.FullName,
		Bio:       spec.Bio,
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", id),
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		account := &models.Account{
			ID:               id,
			Email:            strings.ToLower(spec.Email),
			PasswordHash:     f.passwordHash,
			EmailConfirmedAt: &now,
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create member %s: %w", spec.Username, err)
	}
	return profile, nil
}

// BuildPost returns an unsaved post by author with a created_at spread over the last maxDays.
func (f *Factory) BuildPost(author *models.Profile, privacy models.Privacy) *models.Post {
	back := time.Duration(f.rng.Intn(f.maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute

	post := &models.Post{
		UserID:    author.ID,
		Content:   gofakeit.Paragraph(1, 3, 8, " "),
		Privacy:   privacy,
		CreatedAt: time.Now().Add(-back),
	}
	if f.rng.Float32() < 0.3 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
	}
	return post
}

// CreatePosts persists posts in batches.
func (f *Factory) CreatePosts(posts []*models.Post, batchSize int) error {
	if len(posts) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return f.db.CreateInBatches(posts, batchSize).Error
}

// CreateFriendship persists a friendship from sender to receiver.
func (f *Factory) CreateFriendship(sender, receiver *models.Profile, status models.FriendshipStatus) (*models.Friendship, error) {
	friendship := &models.Friendship{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Status:     status,
	}
	if err := f.db.Create(friendship).Error; err != nil {
		return nil, err
	}
	return friendship, nil
}

// pickPrivacy draws a privacy level according to mix.
func (f *Factory) pickPrivacy(mix PrivacyMix) models.Privacy {
	total := mix.Public + mix.Friends + mix.Private
	if total <= 0 {
		return models.PrivacyPublic
	}
	n := f.rng.Intn(total)
	switch {
	case n < mix.Public:
		return models.PrivacyPublic
	case n < mix.Public+mix.Friends:
		return models.PrivacyFriends
	default:
		return models.PrivacyPrivate
	}
}
